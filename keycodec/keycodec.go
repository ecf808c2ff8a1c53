// Package keycodec turns semantic values (timestamps, names, version indexes)
// into sort-key fragments whose lexicographic order matches the order the
// caller wants to read them back in.
//
// The underlying store only orders records by sort key within a partition,
// compared as opaque strings. Every fragment produced here is therefore
// fixed-width or prefix-free, so that string comparison of two keys agrees
// with comparison of the values they were derived from.
package keycodec

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// MaxTicks is the largest tick count OrderPart can encode. Descending
	// fragments are encoded as MaxTicks minus the tick count.
	MaxTicks int64 = math.MaxInt64

	// tickWidth is the number of decimal digits needed to print MaxTicks.
	tickWidth = 19

	// versionWidth is the number of decimal digits used for version indexes.
	versionWidth = 10
)

// Ticks returns the tick count OrderPart encodes for t: nanoseconds since the
// Unix epoch, clamped to zero for instants before it.
func Ticks(t time.Time) int64 {
	ticks := t.UnixNano()
	if ticks < 0 {
		return 0
	}

	return ticks
}

// OrderPart returns a fixed-width, zero-padded decimal encoding of t. When
// ascending is false the encoded value is MaxTicks minus the tick count, so
// that later instants sort first.
func OrderPart(t time.Time, ascending bool) string {
	ticks := Ticks(t)

	if !ascending {
		ticks = MaxTicks - ticks
	}

	return pad(strconv.FormatInt(ticks, 10), tickWidth)
}

// VersionPart returns a fixed-width, zero-padded decimal encoding of a
// version index. Negative indexes are encoded as zero.
func VersionPart(index int) string {
	if index < 0 {
		index = 0
	}

	return pad(strconv.Itoa(index), versionWidth)
}

// ParseVersionPart is the inverse of VersionPart.
func ParseVersionPart(s string) (int, error) {
	return strconv.Atoi(s)
}

// SubstitutedAlphanumeric derives a second, differently-ordered fragment from
// s. The input is lower-cased; every digit d is replaced by 9-d and every
// letter by its mirror in the alphabet ('a' <-> 'z'). Each original character
// is appended after its substitute, and characters that are neither digits
// nor letters are appended without a substitute.
func SubstitutedAlphanumeric(s string) string {
	var b strings.Builder

	b.Grow(len(s) * 2)

	for _, original := range s {
		lower := toLowerASCII(original)

		switch {
		case lower >= '0' && lower <= '9':
			b.WriteRune('0' + '9' - lower)
		case lower >= 'a' && lower <= 'z':
			b.WriteRune('a' + 'z' - lower)
		}

		b.WriteRune(original)
	}

	return b.String()
}

// InvertedAlphanumeric maps every digit and letter of s to its mirror in the
// 36-symbol alphabet 0-9a-z ('0' <-> 'z', '9' <-> 'q'). Letters are
// lower-cased first and every other character is kept. For inputs of equal
// length with their separators at the same positions, such as canonical
// UUIDs, the results compare in the reverse order of the inputs.
func InvertedAlphanumeric(s string) string {
	var b strings.Builder

	b.Grow(len(s))

	for _, original := range s {
		b.WriteRune(invertSymbol(toLowerASCII(original)))
	}

	return b.String()
}

func invertSymbol(r rune) rune {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

	i := strings.IndexRune(alphabet, r)
	if i < 0 {
		return r
	}

	return rune(alphabet[len(alphabet)-1-i])
}

// SafeKeyFragment percent-encodes s so it can be embedded in a partition or
// sort key. '#', '/', '%' and spaces are always encoded, so an encoded
// fragment never contains the '#' separator.
func SafeKeyFragment(s string) string {
	return url.QueryEscape(s)
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}

	return strings.Repeat("0", width-len(s)) + s
}

func toLowerASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}

	return r
}
