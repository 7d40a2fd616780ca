// Package attachment stores the files seekers attach to applications.
// The rest of the system only ever sees the opaque reference a store returns.
package attachment

import (
	"io"
	"slices"
	"strings"

	"github.com/google/uuid"

	dErrors "docdesk/pkg/domain-errors"
)

// MaxSize caps a single attachment.
const MaxSize = 5 << 20

// AllowedContentTypes are the image formats accepted for attachments.
var AllowedContentTypes = []string{"image/png", "image/jpeg", "image/webp"}

var extensions = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
}

// Upload is an attachment on its way into a store.
type Upload struct {
	Body        io.Reader
	Size        int64
	ContentType string
	Filename    string
}

// Object is an attachment read back from a store. Callers close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// NormalizeContentType lowercases a media type and drops parameters.
func NormalizeContentType(ct string) string {
	base, _, _ := strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func IsAllowed(contentType string) bool {
	return slices.Contains(AllowedContentTypes, NormalizeContentType(contentType))
}

// Problems reports what is wrong with u under the "attachment" field.
func Problems(u *Upload) []dErrors.FieldError {
	if u == nil || u.Body == nil {
		return []dErrors.FieldError{{Field: "attachment", Message: "is required"}}
	}
	var out []dErrors.FieldError
	if !IsAllowed(u.ContentType) {
		out = append(out, dErrors.FieldError{Field: "attachment", Message: "must be a png, jpeg or webp image"})
	}
	if u.Size > MaxSize {
		out = append(out, dErrors.FieldError{Field: "attachment", Message: "must be at most 5 MiB"})
	}
	return out
}

// NewKey returns a fresh object key for an attachment of contentType.
func NewKey(contentType string) string {
	return "applications/" + uuid.NewString() + extensions[NormalizeContentType(contentType)]
}
