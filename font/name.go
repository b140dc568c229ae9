package font

import (
	"fmt"

	"github.com/tdewolff/parse/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// NameID is the name table record identifier.
type NameID uint16

// see NameID
const (
	NameFontFamily         NameID = 1
	NameFontSubfamily      NameID = 2
	NameFull               NameID = 4
	NamePreferredFamily    NameID = 16
	NamePreferredSubfamily NameID = 17
)

type nameRecord struct {
	Platform uint16
	Encoding uint16
	Language uint16
	Name     NameID
	Value    []byte
}

func (record nameRecord) String() string {
	var decoder *encoding.Decoder
	if record.Platform == 0 || record.Platform == 3 {
		decoder = unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder()
	} else if record.Platform == 1 && record.Encoding == 0 {
		decoder = charmap.Macintosh.NewDecoder()
	}
	if decoder == nil {
		return string(record.Value)
	}
	s, _, err := transform.String(decoder, string(record.Value))
	if err != nil {
		return string(record.Value)
	}
	return s
}

type nameTable struct {
	records []nameRecord
}

// Get returns all records for the given name ID.
func (t *nameTable) Get(name NameID) []nameRecord {
	records := []nameRecord{}
	for _, record := range t.records {
		if record.Name == name {
			records = append(records, record)
		}
	}
	return records
}

// Family returns the font family name, preferring the typographic family.
func (sfnt *SFNT) Family() string {
	if sfnt.Name == nil {
		return ""
	}
	for _, name := range []NameID{NamePreferredFamily, NameFontFamily, NameFull} {
		if records := sfnt.Name.Get(name); 0 < len(records) {
			return records[0].String()
		}
	}
	return ""
}

// Subfamily returns the font subfamily name, preferring the typographic
// subfamily.
func (sfnt *SFNT) Subfamily() string {
	if sfnt.Name == nil {
		return ""
	}
	for _, name := range []NameID{NamePreferredSubfamily, NameFontSubfamily} {
		if records := sfnt.Name.Get(name); 0 < len(records) {
			return records[0].String()
		}
	}
	return ""
}

func (sfnt *SFNT) parseName() error {
	b, ok := sfnt.Table("name")
	if !ok {
		return fmt.Errorf("name: missing table")
	} else if len(b) < 6 {
		return fmt.Errorf("name: bad table")
	}

	sfnt.Name = &nameTable{}
	r := parse.NewBinaryReader(b)
	version := r.ReadUint16()
	if version != 0 && version != 1 {
		return fmt.Errorf("name: bad version")
	}
	count := r.ReadUint16()
	storageOffset := r.ReadUint16()
	if uint32(len(b)) < 6+12*uint32(count) || uint16(len(b)) < storageOffset {
		return fmt.Errorf("name: bad table")
	}
	sfnt.Name.records = make([]nameRecord, count)
	for i := 0; i < int(count); i++ {
		sfnt.Name.records[i].Platform = r.ReadUint16()
		sfnt.Name.records[i].Encoding = r.ReadUint16()
		sfnt.Name.records[i].Language = r.ReadUint16()
		sfnt.Name.records[i].Name = NameID(r.ReadUint16())

		length := r.ReadUint16()
		offset := r.ReadUint16()
		if uint16(len(b))-storageOffset < offset || uint16(len(b))-storageOffset-offset < length {
			return fmt.Errorf("name: bad table")
		}
		sfnt.Name.records[i].Value = b[storageOffset+offset : storageOffset+offset+length]
	}
	return nil
}
