// Package media prepares downloaded photos for submission to the image model.
package media

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"line-comicbot/pkg/gallery"

	"github.com/disintegration/imaging"
)

// ErrUndecodable means the bytes are not an image format we can read.
var ErrUndecodable = errors.New("media: undecodable image")

const jpegQuality = 90

// Normalize applies EXIF orientation and shrinks blob so its long edge is at
// most maxEdge. Small JPEG and PNG photos without rotation are returned as-is.
// On ErrUndecodable the original blob is returned so callers can carry on.
func Normalize(blob gallery.MediaBlob, maxEdge int) (gallery.MediaBlob, error) {
	if maxEdge <= 0 || len(blob.Data) == 0 {
		return blob, nil
	}

	img, err := imaging.Decode(bytes.NewReader(blob.Data), imaging.AutoOrientation(true))
	if err != nil {
		return blob, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}

	b := img.Bounds()
	fits := b.Dx() <= maxEdge && b.Dy() <= maxEdge
	if fits && passthrough(blob) {
		return blob, nil
	}
	if !fits {
		img = imaging.Fit(img, maxEdge, maxEdge, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(jpegQuality)); err != nil {
		return blob, fmt.Errorf("encode jpeg: %w", err)
	}
	return gallery.MediaBlob{Data: buf.Bytes(), MimeType: "image/jpeg"}, nil
}

// passthrough reports whether the original bytes can be sent unchanged.
// Only declared PNG and JPEG qualify; anything else, including an unknown or
// missing type, is re-encoded. JPEGs carrying an orientation tag are
// re-encoded so the model sees them upright.
func passthrough(blob gallery.MediaBlob) bool {
	mt, _, _ := strings.Cut(blob.MimeType, ";")
	switch strings.ToLower(strings.TrimSpace(mt)) {
	case "image/png":
		return true
	case "image/jpeg", "image/jpg":
		return !hasEXIF(blob.Data)
	}
	return false
}

// hasEXIF looks for an APP1 Exif segment near the start of a JPEG.
func hasEXIF(data []byte) bool {
	head := data[:min(len(data), 64*1024)]
	return bytes.Contains(head, []byte("Exif\x00\x00"))
}
