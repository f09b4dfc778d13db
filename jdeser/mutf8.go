package jdeser

import (
	"strings"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// decodeModifiedUTF8 implements exactly the JVM's modified UTF-8
// (spec.md §4.2): the byte 0x00 is only ever valid inside the two-byte
// form 0xC0 0x80 (representing U+0000), and supplementary code points
// are represented as two three-byte sequences (surrogate halves), never
// as a single four-byte sequence. It deliberately does not delegate to
// unicode/utf8 or golang.org/x/text/encoding, both of which reject
// 0xC0 0x80 and accept four-byte sequences the JVM form forbids
// (spec.md §9).
func decodeModifiedUTF8(b []byte) (string, error) {
	var units []uint16
	i := 0
	n := len(b)

	for i < n {
		b0 := b[i]
		switch {
		case b0 == 0x00:
			return "", errors.New("modified utf-8: embedded single 0x00 byte is not valid")

		case b0&0x80 == 0x00:
			// 0xxxxxxx, U+0001..U+007F
			units = append(units, uint16(b0))
			i++

		case b0&0xE0 == 0xC0:
			// 110xxxxx 10xxxxxx, U+0000..U+07FF
			if i+1 >= n {
				return "", errors.New("modified utf-8: truncated two-byte sequence")
			}
			b1 := b[i+1]
			if b1&0xC0 != 0x80 {
				return "", errors.New("modified utf-8: bad continuation byte in two-byte sequence")
			}
			cp := (uint16(b0&0x1F) << 6) | uint16(b1&0x3F)
			units = append(units, cp)
			i += 2

		case b0&0xF0 == 0xE0:
			// 1110xxxx 10xxxxxx 10xxxxxx, U+0800..U+FFFF (includes lone
			// surrogate halves, used in pairs for supplementary points)
			if i+2 >= n {
				return "", errors.New("modified utf-8: truncated three-byte sequence")
			}
			b1, b2 := b[i+1], b[i+2]
			if b1&0xC0 != 0x80 || b2&0xC0 != 0x80 {
				return "", errors.New("modified utf-8: bad continuation byte in three-byte sequence")
			}
			cp := (uint16(b0&0x0F) << 12) | (uint16(b1&0x3F) << 6) | uint16(b2&0x3F)
			units = append(units, cp)
			i += 3

		default:
			return "", errors.Errorf("modified utf-8: invalid lead byte %#x", b0)
		}
	}

	var sb strings.Builder
	sb.Grow(len(units))
	// utf16.Decode correctly reassembles surrogate pairs written as two
	// consecutive 3-byte sequences into a single rune; unpaired
	// surrogate halves come back as the replacement character, matching
	// how a JVM reader would never see one in practice.
	for _, r := range utf16.Decode(units) {
		sb.WriteRune(r)
	}
	return sb.String(), nil
}
