package renderjobs

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"montage/internal/projectstore"
)

// newJobID synthesizes a globally unique render job id. The creation
// timestamp leads so lexical comparison of same-quality ids follows creation
// order, which the retention sweep relies on as a tiebreaker.
func newJobID(quality projectstore.RenderQuality) string {
	return fmt.Sprintf("%d-%s-%s", time.Now().UnixMilli(), quality, uuid.NewString()[:8])
}
