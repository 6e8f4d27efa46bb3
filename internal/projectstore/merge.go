package projectstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"montage/internal/services"
)

// ShotPatch is the allow-list of client-mutable shot fields. Everything else
// on a Shot is server-managed; a patch naming any other field is rejected
// rather than silently dropped.
type ShotPatch struct {
	Prompt          *string  `json:"prompt"`
	DurationSeconds *float64 `json:"durationSeconds"`
}

// DecodeShotPatch parses raw JSON into a ShotPatch, rejecting unknown fields.
func DecodeShotPatch(raw []byte) (*ShotPatch, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()
	var patch ShotPatch
	if err := decoder.Decode(&patch); err != nil {
		msg := err.Error()
		if strings.Contains(msg, "unknown field") {
			return nil, services.Wrap(services.ErrValidation, "projectstore", "patch", "field is not client-mutable", err)
		}
		return nil, services.Wrap(services.ErrValidation, "projectstore", "patch", "malformed patch body", err)
	}
	if decoder.More() {
		return nil, services.Wrap(services.ErrValidation, "projectstore", "patch", "trailing content after patch body", nil)
	}
	if patch.DurationSeconds != nil && *patch.DurationSeconds < 0 {
		return nil, services.Wrap(services.ErrValidation, "projectstore", "patch", "durationSeconds must not be negative", nil)
	}
	return &patch, nil
}

// ApplyShotPatch merges an allow-listed patch into the identified shot.
func ApplyShotPatch(project *Project, shotID string, patch *ShotPatch) error {
	if patch == nil {
		return services.Wrap(services.ErrValidation, "projectstore", "patch", "empty patch", nil)
	}
	shot := project.FindShot(shotID)
	if shot == nil {
		return services.Wrap(services.ErrNotFound, "projectstore", "patch", fmt.Sprintf("shot %s", shotID), nil)
	}
	if patch.Prompt != nil {
		shot.Prompt = *patch.Prompt
	}
	if patch.DurationSeconds != nil {
		shot.DurationSeconds = *patch.DurationSeconds
	}
	return nil
}
