// Package gallery contains the core domain types for the comic conversion bot.
package gallery

import (
	"regexp"
	"strings"
	"time"
)

// Role marks what a stored image is.
type Role string

const (
	RoleOriginal Role = "original" // AI-transformed result, listed by the gallery
	RolePreview  Role = "preview"  // untouched photo as received from the user
	RoleComic    Role = "comic"
)

// MediaBlob is an in-memory image. It is never persisted as-is.
type MediaBlob struct {
	Data     []byte
	MimeType string
}

// StoredImage is an image written to the blob store.
type StoredImage struct {
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Role      Role      `json:"role"`
	Size      int64     `json:"size"`
}

// BlobMeta is what a bucket listing returns for one object.
type BlobMeta struct {
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
}

// Analysis is the result of the pose check.
type Analysis struct {
	SubjectPresent bool `json:"face_detected"`
	Posed          bool `json:"is_pose"`
}

// ShouldTransform reports whether the photo qualifies for conversion.
func (a Analysis) ShouldTransform() bool {
	return a.SubjectPresent && a.Posed
}

// Filter decides whether a listed object is of interest.
type Filter func(name string) bool

var imageExtRegex = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|gif|webp)$`)

// OriginalImages matches objects the gallery shows.
func OriginalImages(name string) bool {
	return strings.Contains(name, string(RoleOriginal)) && imageExtRegex.MatchString(name)
}

// AllObjects matches everything.
func AllObjects(string) bool { return true }
