package refcache

import (
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// IsExternal reports whether ref points outside the project's media
// directories and therefore needs localizing.
func IsExternal(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "data:")
}

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".webp": {},
	".gif":  {},
	".mp4":  {},
	".webm": {},
	".mov":  {},
	".mp3":  {},
	".wav":  {},
}

// mime.ExtensionsByType is platform dependent and returns multiple candidates
// for common types, so the usual media types are pinned explicitly.
var extensionOverrides = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/webp":      ".webp",
	"image/gif":       ".gif",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/quicktime": ".mov",
	"audio/mpeg":      ".mp3",
	"audio/wav":       ".wav",
}

// inferExtension picks a file extension for a localized reference. data: URIs
// carry a media type hint; http(s) URLs contribute their path suffix when it
// is a known media extension. The response content type is consulted before
// falling back to .png, a safe raster default.
func inferExtension(ref, contentType string) string {
	if strings.HasPrefix(ref, "data:") {
		if ext := extensionForMediaType(dataURIMediaType(ref)); ext != "" {
			return ext
		}
		return ".png"
	}
	if parsed, err := url.Parse(ref); err == nil {
		ext := strings.ToLower(path.Ext(parsed.Path))
		if _, ok := allowedExtensions[ext]; ok {
			return ext
		}
	}
	if ext := extensionForMediaType(contentType); ext != "" {
		return ext
	}
	return ".png"
}

func extensionForMediaType(mediaType string) string {
	if mediaType == "" {
		return ""
	}
	parsed, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ""
	}
	if ext, ok := extensionOverrides[parsed]; ok {
		return ext
	}
	exts, err := mime.ExtensionsByType(parsed)
	if err != nil || len(exts) == 0 {
		return ""
	}
	ext := strings.ToLower(exts[0])
	if _, ok := allowedExtensions[ext]; ok {
		return ext
	}
	return ""
}

func dataURIMediaType(ref string) string {
	rest := strings.TrimPrefix(ref, "data:")
	comma := strings.IndexByte(rest, ',')
	if comma < 0 {
		return ""
	}
	meta := rest[:comma]
	if semi := strings.IndexByte(meta, ';'); semi >= 0 {
		meta = meta[:semi]
	}
	return meta
}

// newLocalName generates a collision resistant filename for a localized
// reference.
func newLocalName(ext string) string {
	return fmt.Sprintf("ref-%d-%s%s", time.Now().UnixMilli(), uuid.NewString()[:8], ext)
}
