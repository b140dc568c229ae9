package font

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/tdewolff/parse/v2"
)

// Table is a single entry of an SFNT font's table directory together with its
// data. Table data is opaque to this package except for the few header tables
// that container conversion needs.
type Table struct {
	Tag  string
	Data []byte
}

// SFNT is a parsed OpenType font container. Tables are kept in file order.
type SFNT struct {
	Data              []byte
	Version           string
	IsCFF, IsTrueType bool // only one can be true
	Tables            []Table

	Head *headTable
	Maxp *maxpTable
	Hhea *hheaTable
	Name *nameTable
}

// Table returns the data of the table with the given tag.
func (sfnt *SFNT) Table(tag string) ([]byte, bool) {
	for _, table := range sfnt.Tables {
		if table.Tag == tag {
			return table.Data, true
		}
	}
	return nil, false
}

// NumGlyphs returns the number of glyphs the font contains.
func (sfnt *SFNT) NumGlyphs() uint16 {
	if sfnt.Maxp == nil {
		return 0
	}
	return sfnt.Maxp.NumGlyphs
}

type headTable struct {
	FontRevision     uint32
	UnitsPerEm       uint16
	IndexToLocFormat int16
}

type maxpTable struct {
	Version   uint32
	NumGlyphs uint16
}

type hheaTable struct {
	Ascender         int16
	Descender        int16
	NumberOfHMetrics uint16
}

// ParseSFNT parses the table directory of an SFNT font (TTF or OTF) and the
// header tables needed for container conversion. Collections are not
// supported.
func ParseSFNT(b []byte) (*SFNT, error) {
	if len(b) < 12 || uint(math.MaxUint32) < uint(len(b)) {
		return nil, ErrInvalidFontData
	}

	r := parse.NewBinaryReader(b)
	sfntVersion := r.ReadString(4)
	if sfntVersion == "ttcf" {
		return nil, fmt.Errorf("collections are unsupported")
	} else if sfntVersion != "OTTO" && sfntVersion != "true" && binary.BigEndian.Uint32([]byte(sfntVersion)) != 0x00010000 {
		return nil, fmt.Errorf("bad SFNT version")
	}
	numTables := r.ReadUint16()
	_ = r.ReadUint16() // searchRange
	_ = r.ReadUint16() // entrySelector
	_ = r.ReadUint16() // rangeShift
	if numTables == 0 {
		return nil, fmt.Errorf("numTables in header must not be zero")
	} else if r.Len() < 16*uint32(numTables) { // can never exceed uint32 as numTables is uint16
		return nil, ErrInvalidFontData
	}

	sfnt := &SFNT{}
	sfnt.Data = b
	sfnt.Version = sfntVersion
	sfnt.IsCFF = sfntVersion == "OTTO"
	sfnt.IsTrueType = sfntVersion == "true" || binary.BigEndian.Uint32([]byte(sfntVersion)) == 0x00010000
	sfnt.Tables = make([]Table, 0, numTables)

	frontSize := 12 + 16*uint32(numTables)
	for i := 0; i < int(numTables); i++ {
		tag := r.ReadString(4)
		_ = r.ReadUint32() // checksum
		offset := r.ReadUint32()
		length := r.ReadUint32()

		padding := (4 - length&3) & 3
		if offset < frontSize || uint32(len(b)) <= offset || uint32(len(b))-offset < length || uint32(len(b))-offset-length < padding {
			return nil, fmt.Errorf("%s: table extends beyond file size", tag)
		}
		sfnt.Tables = append(sfnt.Tables, Table{
			Tag:  tag,
			Data: b[offset : offset+length : offset+length],
		})
	}

	if err := sfnt.parseHead(); err != nil {
		return nil, err
	} else if err := sfnt.parseMaxp(); err != nil {
		return nil, err
	}
	// hhea and name are optional for conversion itself
	if _, ok := sfnt.Table("hhea"); ok {
		if err := sfnt.parseHhea(); err != nil {
			return nil, err
		}
	}
	if _, ok := sfnt.Table("name"); ok {
		if err := sfnt.parseName(); err != nil {
			return nil, err
		}
	}
	return sfnt, nil
}

func (sfnt *SFNT) parseHead() error {
	b, ok := sfnt.Table("head")
	if !ok {
		return fmt.Errorf("head: missing table")
	} else if len(b) != 54 {
		return fmt.Errorf("head: bad table")
	}

	sfnt.Head = &headTable{}
	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || minorVersion != 0 {
		return fmt.Errorf("head: bad version")
	}
	sfnt.Head.FontRevision = r.ReadUint32()
	_ = r.ReadUint32()                // checkSumAdjustment
	if r.ReadUint32() != 0x5F0F3CF5 { // magicNumber
		return fmt.Errorf("head: bad magic number")
	}
	_ = r.ReadUint16() // flags
	sfnt.Head.UnitsPerEm = r.ReadUint16()
	_ = r.ReadBytes(16) // created and modified dates
	_ = r.ReadInt16()   // xMin
	_ = r.ReadInt16()   // yMin
	_ = r.ReadInt16()   // xMax
	_ = r.ReadInt16()   // yMax
	_ = r.ReadUint16()  // macStyle
	_ = r.ReadUint16()  // lowestRecPPEM
	_ = r.ReadInt16()   // fontDirectionHint
	sfnt.Head.IndexToLocFormat = r.ReadInt16()
	if sfnt.Head.IndexToLocFormat != 0 && sfnt.Head.IndexToLocFormat != 1 {
		return fmt.Errorf("head: bad indexToLocFormat")
	}
	return nil
}

func (sfnt *SFNT) parseMaxp() error {
	b, ok := sfnt.Table("maxp")
	if !ok {
		return fmt.Errorf("maxp: missing table")
	} else if len(b) < 6 {
		return fmt.Errorf("maxp: bad table")
	}

	sfnt.Maxp = &maxpTable{}
	r := parse.NewBinaryReader(b)
	sfnt.Maxp.Version = r.ReadUint32()
	sfnt.Maxp.NumGlyphs = r.ReadUint16()
	if sfnt.Maxp.Version == 0x00005000 && len(b) == 6 {
		return nil // CFF
	} else if sfnt.Maxp.Version == 0x00010000 && len(b) == 32 {
		return nil // TrueType
	}
	return fmt.Errorf("maxp: bad table")
}

func (sfnt *SFNT) parseHhea() error {
	b, ok := sfnt.Table("hhea")
	if !ok {
		return fmt.Errorf("hhea: missing table")
	} else if len(b) != 36 {
		return fmt.Errorf("hhea: bad table")
	}

	sfnt.Hhea = &hheaTable{}
	r := parse.NewBinaryReader(b)
	majorVersion := r.ReadUint16()
	minorVersion := r.ReadUint16()
	if majorVersion != 1 || minorVersion != 0 {
		return fmt.Errorf("hhea: bad version")
	}
	sfnt.Hhea.Ascender = r.ReadInt16()
	sfnt.Hhea.Descender = r.ReadInt16()
	_ = r.ReadBytes(26) // lineGap up to metricDataFormat
	sfnt.Hhea.NumberOfHMetrics = r.ReadUint16()
	if sfnt.Maxp.NumGlyphs < sfnt.Hhea.NumberOfHMetrics || sfnt.Hhea.NumberOfHMetrics == 0 {
		return fmt.Errorf("hhea: bad numberOfHMetrics")
	}
	return nil
}

// Write serializes the font as a plain SFNT container (TTF or OTF), with the
// table directory sorted by tag and all checksums recomputed.
func (sfnt *SFNT) Write() []byte {
	tables := make([]Table, len(sfnt.Tables))
	copy(tables, sfnt.Tables)
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].Tag < tables[j].Tag
	})
	return writeSFNT(sfnt.Version, tables)
}

// writeSFNT serializes a table set as a plain SFNT container, keeping the
// given table order. Per-table checksums and the head checkSumAdjustment are
// recomputed; the head table's checksum is taken with its adjustment zeroed.
func writeSFNT(version string, tables []Table) []byte {
	numTables := uint16(len(tables))
	var searchRange uint16 = 1
	var entrySelector uint16
	var rangeShift uint16
	for {
		if searchRange*2 > numTables {
			break
		}
		searchRange *= 2
		entrySelector++
	}
	searchRange *= 16
	rangeShift = numTables*16 - searchRange

	totalSize := 12 + 16*uint32(numTables)
	for _, table := range tables {
		totalSize += (uint32(len(table.Data)) + 3) & 0xFFFFFFFC
	}

	// zero the head checkSumAdjustment before computing checksums
	datas := make([][]byte, len(tables))
	headIndex := -1
	for i, table := range tables {
		datas[i] = table.Data
		if table.Tag == "head" && 12 <= len(table.Data) {
			data := make([]byte, len(table.Data))
			copy(data, table.Data)
			binary.BigEndian.PutUint32(data[8:], 0x00000000)
			datas[i] = data
			headIndex = i
		}
	}

	w := parse.NewBinaryWriter(make([]byte, 0, totalSize))
	w.WriteString(version)
	w.WriteUint16(numTables)
	w.WriteUint16(searchRange)
	w.WriteUint16(entrySelector)
	w.WriteUint16(rangeShift)

	offset := 12 + 16*uint32(numTables)
	var headOffset uint32
	for i, table := range tables {
		length := uint32(len(table.Data))
		padded := (length + 3) & 0xFFFFFFFC
		checksum := calcChecksum(datas[i])
		if table.Tag == "head" {
			headOffset = offset
		}
		w.WriteString(table.Tag)
		w.WriteUint32(checksum)
		w.WriteUint32(offset)
		w.WriteUint32(length)
		offset += padded
	}
	for i := range tables {
		w.WriteBytes(datas[i])
		nPadding := (4 - len(datas[i])&3) & 3
		for n := 0; n < nPadding; n++ {
			w.WriteUint8(0x00)
		}
	}

	buf := w.Bytes()
	if headIndex != -1 {
		checkSumAdjustment := 0xB1B0AFBA - calcChecksum(buf)
		binary.BigEndian.PutUint32(buf[headOffset+8:], checkSumAdjustment)
	}
	return buf
}
