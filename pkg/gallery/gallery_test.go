package gallery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Vectors computed with the JavaScript implementation used by the frontend.
func TestHashID(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "", want: "000000000"},
		{name: "a", want: "000000061"},
		{name: "abc", want: "000017862"},
		{name: "hello world", want: "06aefe2c4"},
		{name: "2025-01-02T03-04-05-678Z_original.png", want: "048361ed1"},
		{name: "2024-06-30T23-59-59-999Z_original.jpg", want: "00ef9730d"}, // negative hash
		{name: "2025-01-02T03-04-05-678Z_preview.png", want: "02584cbe2"},  // negative hash
		{name: "ヒーロー.png", want: "023b893ac"},
		{name: "😀", want: "0001b0d63"}, // surrogate pair
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HashID(tt.name)
			assert.Equal(t, tt.want, got)
			assert.Len(t, got, HashIDLength)
			assert.True(t, ValidHashID(got))
		})
	}
}

func TestHashIDDeterministic(t *testing.T) {
	name := NewName(time.Now(), RoleOriginal, "image/png")
	assert.Equal(t, HashID(name), HashID(name))
}

func TestFindByHashID(t *testing.T) {
	names := []string{
		"2025-01-02T03-04-05-678Z_original.png",
		"2024-06-30T23-59-59-999Z_original.jpg",
		"2025-01-02T03-04-05-678Z_original.png",
	}

	got, ok := FindByHashID(names, "00ef9730d")
	require.True(t, ok)
	assert.Equal(t, names[1], got)

	got, ok = FindByHashID(names, HashID(names[0]))
	require.True(t, ok)
	assert.Equal(t, names[0], got, "first match wins")

	_, ok = FindByHashID(names, "deadbeef1")
	assert.False(t, ok)

	_, ok = FindByHashID(nil, "000000000")
	assert.False(t, ok)
}

func TestNewName(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	tests := []struct {
		mime string
		role Role
		want string
	}{
		{mime: "image/png", role: RoleOriginal, want: "2025-01-02T03-04-05-678Z_original.png"},
		{mime: "image/jpeg", role: RolePreview, want: "2025-01-02T03-04-05-678Z_preview.jpg"},
		{mime: "image/jpg", role: RoleComic, want: "2025-01-02T03-04-05-678Z_comic.jpg"},
		{mime: "image/webp", role: RoleOriginal, want: "2025-01-02T03-04-05-678Z_original.webp"},
		{mime: "image/gif", role: RoleOriginal, want: "2025-01-02T03-04-05-678Z_original.gif"},
		{mime: "application/octet-stream", role: RoleOriginal, want: "2025-01-02T03-04-05-678Z_original.jpg"},
		{mime: "IMAGE/PNG; charset=binary", role: RoleOriginal, want: "2025-01-02T03-04-05-678Z_original.png"},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			assert.Equal(t, tt.want, NewName(ts, tt.role, tt.mime))
		})
	}

	local := time.Date(2025, 1, 2, 12, 4, 5, 0, time.FixedZone("JST", 9*60*60))
	assert.Equal(t, "2025-01-02T03-04-05-000Z_original.png", NewName(local, RoleOriginal, "image/png"))
}

func TestParseName(t *testing.T) {
	ts := time.Date(2025, 1, 2, 3, 4, 5, 678_000_000, time.UTC)
	parsed, err := ParseName(NewName(ts, RoleOriginal, "image/webp"))
	require.NoError(t, err)
	assert.True(t, ts.Equal(parsed.CreatedAt))
	assert.Equal(t, RoleOriginal, parsed.Role)
	assert.Equal(t, "webp", parsed.Ext)

	for _, bad := range []string{"", "photo.png", "2025-01-02_original.png", "2025-01-02T03-04-05-678Z_original", "2025-01-02T03-04-05-67xZ_original.png"} {
		_, err := ParseName(bad)
		assert.Error(t, err, bad)
	}
}

func TestOriginalImages(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"2025-01-02T03-04-05-678Z_original.png", true},
		{"2025-01-02T03-04-05-678Z_original.JPEG", true},
		{"2025-01-02T03-04-05-678Z_original.webp", true},
		{"2025-01-02T03-04-05-678Z_preview.png", false},
		{"2025-01-02T03-04-05-678Z_original.txt", false},
		{"original-notes.md", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OriginalImages(tt.name))
		})
	}
}

func TestMimeTypeFor(t *testing.T) {
	assert.Equal(t, "image/png", MimeTypeFor("x_original.png"))
	assert.Equal(t, "image/jpeg", MimeTypeFor("x_original.JPG"))
	assert.Equal(t, "application/octet-stream", MimeTypeFor("x"))
}

func TestAnalysisShouldTransform(t *testing.T) {
	assert.True(t, Analysis{SubjectPresent: true, Posed: true}.ShouldTransform())
	assert.False(t, Analysis{SubjectPresent: true}.ShouldTransform())
	assert.False(t, Analysis{Posed: true}.ShouldTransform())
}

func TestLinksSlideshow(t *testing.T) {
	l := Links{LIFFID: "1234-abcd"}
	assert.Equal(t, "https://liff.line.me/1234-abcd/048361ed1", l.Slideshow("048361ed1"))

	l = Links{BaseURL: "https://example.test/", LIFFID: "x"}
	assert.Equal(t, "https://example.test/x/abc", l.Slideshow("abc"))
}
