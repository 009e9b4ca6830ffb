package gallery

import (
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"
)

// Names start with an ISO 8601 UTC timestamp with millisecond precision
// where ':' and '.' are replaced by '-', so they are safe object keys.
const (
	isoMillisLayout = "2006-01-02T15:04:05.000Z"
	stampLayout     = "2006-01-02T15-04-05"
	stampLen        = len("2006-01-02T15-04-05-000Z")
)

var stampReplacer = strings.NewReplacer(":", "-", ".", "-")

var extensions = map[string]string{
	"image/jpeg": "jpg",
	"image/jpg":  "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

var mimeTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
}

// ExtensionFor maps an image MIME type to a file extension. Unknown types get jpg.
func ExtensionFor(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if ext, ok := extensions[mt]; ok {
		return ext
	}
	return "jpg"
}

// MimeTypeFor is the inverse of ExtensionFor for a stored name.
func MimeTypeFor(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if mt, ok := mimeTypes[ext]; ok {
		return mt
	}
	return "application/octet-stream"
}

// NewName builds the object name for an image created at t.
func NewName(t time.Time, role Role, mimeType string) string {
	stamp := stampReplacer.Replace(t.UTC().Format(isoMillisLayout))
	return fmt.Sprintf("%s_%s.%s", stamp, role, ExtensionFor(mimeType))
}

// ParsedName is the decomposition of an object name built by NewName.
type ParsedName struct {
	CreatedAt time.Time
	Role      Role
	Ext       string
}

// ParseName reverses NewName.
func ParseName(name string) (ParsedName, error) {
	stamp, rest, ok := strings.Cut(name, "_")
	if !ok {
		return ParsedName{}, errors.New("missing role separator")
	}
	created, err := parseStamp(stamp)
	if err != nil {
		return ParsedName{}, err
	}
	role, ext, ok := strings.Cut(rest, ".")
	if !ok || role == "" || ext == "" {
		return ParsedName{}, errors.New("missing extension")
	}
	return ParsedName{CreatedAt: created, Role: Role(role), Ext: ext}, nil
}

func parseStamp(stamp string) (time.Time, error) {
	if len(stamp) != stampLen || stamp[stampLen-1] != 'Z' {
		return time.Time{}, fmt.Errorf("malformed timestamp %q", stamp)
	}
	t, err := time.Parse(stampLayout, stamp[:len(stampLayout)])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp: %w", err)
	}
	millis, err := strconv.Atoi(stamp[len(stampLayout)+1 : stampLen-1])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse milliseconds: %w", err)
	}
	return t.Add(time.Duration(millis) * time.Millisecond), nil
}
