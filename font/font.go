// Package font reads and writes the TTF, OTF, WOFF, and WOFF2 font container
// formats. Tables are kept as opaque byte blobs; only the headers needed to
// move a font between containers (head, maxp, hhea, name) are decoded.
package font

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ErrInvalidFontData is returned when the font file is malformed.
var ErrInvalidFontData = fmt.Errorf("invalid font data")

// Format is a font container format.
type Format uint8

// see Format
const (
	UnknownFormat Format = iota
	TTF
	OTF
	WOFF
	WOFF2
)

// ParseFormat parses a container format name as used on the command line.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "ttf":
		return TTF, nil
	case "otf":
		return OTF, nil
	case "woff":
		return WOFF, nil
	case "woff2":
		return WOFF2, nil
	}
	return UnknownFormat, fmt.Errorf("unknown font format: %s", s)
}

func (format Format) String() string {
	switch format {
	case TTF:
		return "ttf"
	case OTF:
		return "otf"
	case WOFF:
		return "woff"
	case WOFF2:
		return "woff2"
	}
	return "unknown"
}

// Extension returns the file extension for the format, including the dot.
func (format Format) Extension() string {
	if format == UnknownFormat {
		return ""
	}
	return "." + format.String()
}

// MediaType returns the media type for the format.
func (format Format) MediaType() string {
	switch format {
	case TTF:
		return "font/truetype"
	case OTF:
		return "font/opentype"
	case WOFF:
		return "font/woff"
	case WOFF2:
		return "font/woff2"
	}
	return ""
}

// Sniff detects the container format of a font file from its signature.
func Sniff(b []byte) (Format, error) {
	if len(b) < 4 {
		return UnknownFormat, ErrInvalidFontData
	}
	tag := string(b[:4])
	switch {
	case tag == "wOFF":
		return WOFF, nil
	case tag == "wOF2":
		return WOFF2, nil
	case tag == "OTTO":
		return OTF, nil
	case tag == "true" || binary.BigEndian.Uint32(b[:4]) == 0x00010000:
		return TTF, nil
	case tag == "ttcf":
		return UnknownFormat, fmt.Errorf("collections are unsupported")
	}
	return UnknownFormat, fmt.Errorf("unrecognized font file format")
}

// ToSFNT returns the SFNT font contained in the font file, decompressing WOFF
// and WOFF2 containers. TTF and OTF input passes through unchanged.
func ToSFNT(b []byte) ([]byte, error) {
	format, err := Sniff(b)
	if err != nil {
		return nil, err
	}
	switch format {
	case WOFF:
		return ParseWOFF(b)
	case WOFF2:
		return ParseWOFF2(b)
	}
	return b, nil
}

func uint32ToString(v uint32) string {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, v)
	return string(b)
}

// calcChecksum calculates the SFNT table checksum: the big-endian uint32 sum
// over the data, with the tail zero-padded to a multiple of four bytes.
func calcChecksum(b []byte) uint32 {
	var sum uint32
	for 4 <= len(b) {
		sum += binary.BigEndian.Uint32(b[:4])
		b = b[4:]
	}
	if 0 < len(b) {
		tail := [4]byte{}
		copy(tail[:], b)
		sum += binary.BigEndian.Uint32(tail[:])
	}
	return sum
}
