package gallery

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
)

// HashIDLength is the number of hex characters in a HashID.
const HashIDLength = 9

var hashIDRegex = regexp.MustCompile(`^[0-9a-f]{9}$`)

// HashID derives the short public identifier of a stored object name.
// The frontend computes the same value, so the arithmetic must stay
// bit-compatible with it: 31*h + c over UTF-16 code units, wrapping at 32 bits.
func HashID(name string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(name)) {
		h = (h << 5) - h + int32(c)
	}

	// Widen before negating so math.MinInt32 has a positive value.
	v := int64(h)
	if v < 0 {
		v = -v
	}

	s := strconv.FormatInt(v, 16)
	if len(s) < HashIDLength {
		s = strings.Repeat("0", HashIDLength-len(s)) + s
	}
	return s[:HashIDLength]
}

// ValidHashID reports whether id has the shape HashID produces.
func ValidHashID(id string) bool {
	return hashIDRegex.MatchString(id)
}

// FindByHashID returns the first name whose HashID equals id.
// Collisions are possible; order of names decides the winner.
func FindByHashID(names []string, id string) (string, bool) {
	for _, name := range names {
		if HashID(name) == id {
			return name, true
		}
	}
	return "", false
}
