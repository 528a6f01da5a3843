package mangle

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// Character classes of the text mangler. Replacement picks a random
// character of the same class; anything outside the three substitution
// classes (whitespace, punctuation, marks, symbols, control bytes)
// passes through unchanged, preserving the visual layout.
type charClass uint8

const (
	classPass charClass = iota
	classUpper
	classLower
	classDigit
)

func classify(r rune) charClass {
	switch {
	case unicode.IsUpper(r):
		return classUpper
	case unicode.IsLower(r):
		return classLower
	case unicode.IsDigit(r):
		return classDigit
	}
	return classPass
}

// FontMap holds the substitution pools of one font: the characters
// the font is known to cover, split by class. Empty pools fall back
// to the Latin defaults.
type FontMap struct {
	Upper, Lower, Digit []rune
}

// Latin is the default substitution map, used when a font gives no
// usable coverage information.
var Latin = FontMap{
	Upper: []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ"),
	Lower: []rune("abcdefghijklmnopqrstuvwxyz"),
	Digit: []rune("0123456789"),
}

func (fm FontMap) pool(c charClass) []rune {
	var pool, fallback []rune
	switch c {
	case classUpper:
		pool, fallback = fm.Upper, Latin.Upper
	case classLower:
		pool, fallback = fm.Lower, Latin.Lower
	case classDigit:
		pool, fallback = fm.Digit, Latin.Digit
	default:
		return nil
	}
	if len(pool) == 0 {
		return fallback
	}
	return pool
}

// add classifies `r` into the map pools; pass-through characters are
// ignored.
func (fm *FontMap) add(r rune) {
	switch classify(r) {
	case classUpper:
		fm.Upper = append(fm.Upper, r)
	case classLower:
		fm.Lower = append(fm.Lower, r)
	case classDigit:
		fm.Digit = append(fm.Digit, r)
	}
}

// MapCharSet builds a substitution map from a FontDescriptor CharSet
// entry, a string of slash-prefixed glyph names.
func MapCharSet(charset string) FontMap {
	var fm FontMap
	for _, name := range strings.Split(charset, "/") {
		if name == "" {
			continue
		}
		if r, ok := glyphToRune(name); ok {
			fm.add(r)
		}
	}
	return fm
}

// MapCodeRange builds a substitution map from the FirstChar/LastChar
// range of a simple font, interpreted as Latin-1.
func MapCodeRange(first, last int) FontMap {
	var fm FontMap
	for code := first; code <= last && code <= 0xff; code++ {
		if code < 0 {
			continue
		}
		fm.add(charmap.ISO8859_1.DecodeByte(byte(code)))
	}
	return fm
}

// ReplaceString replaces each character of `s` with a random one of
// the same class, leaving the other characters in place.
func ReplaceString(src *Source, s string, fm FontMap) string {
	out := []rune(s)
	for i, r := range out {
		if pool := fm.pool(classify(r)); pool != nil {
			out[i] = src.Pick(pool)
		}
	}
	return string(out)
}

// ReplaceBytes is ReplaceString for the single-byte strings of simple
// fonts: each byte is interpreted as Latin-1, substituted in its
// class, and re-encoded, so the byte length never changes.
func ReplaceBytes(src *Source, b []byte, fm FontMap) []byte {
	out := make([]byte, len(b))
	for i, by := range b {
		r := charmap.ISO8859_1.DecodeByte(by)
		pool := fm.pool(classify(r))
		if pool == nil {
			out[i] = by
			continue
		}
		nb, ok := charmap.ISO8859_1.EncodeRune(src.Pick(pool))
		if !ok {
			// substitution pool outside Latin-1, keep the original
			out[i] = by
			continue
		}
		out[i] = nb
	}
	return out
}
