package font

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/tdewolff/parse/v2"
)

type woffTable struct {
	tag          string
	offset       uint32
	length       uint32
	origLength   uint32
	origChecksum uint32
}

type tablePositions struct {
	offsets, lengths []uint32
}

func (table *tablePositions) Add(offset, length uint32) {
	i := 0
	for i < len(table.offsets) && table.offsets[i] < offset {
		i++
	}
	if i == len(table.offsets) {
		table.offsets = append(table.offsets, offset)
		table.lengths = append(table.lengths, length)
	} else {
		table.offsets = append(table.offsets[:i], append([]uint32{offset}, table.offsets[i:]...)...)
		table.lengths = append(table.lengths[:i], append([]uint32{length}, table.lengths[i:]...)...)
	}
}

func (table *tablePositions) HasOverlap() bool {
	for i := 1; i < len(table.offsets); i++ {
		if table.offsets[i] < table.offsets[i-1]+table.lengths[i-1] {
			return true
		}
	}
	return false
}

// ParseWOFF parses the WOFF font format and returns its contained SFNT font
// format (TTF or OTF). See https://www.w3.org/TR/WOFF/
func ParseWOFF(b []byte) ([]byte, error) {
	if len(b) < 44 {
		return nil, ErrInvalidFontData
	}

	r := parse.NewBinaryReader(b)
	signature := r.ReadString(4)
	if signature != "wOFF" {
		return nil, fmt.Errorf("bad signature")
	}
	flavor := r.ReadUint32()
	if uint32ToString(flavor) == "ttcf" {
		return nil, fmt.Errorf("collections are unsupported")
	}
	length := r.ReadUint32()
	numTables := r.ReadUint16()
	reserved := r.ReadUint16()
	totalSfntSize := r.ReadUint32()
	_ = r.ReadUint16()               // majorVersion
	_ = r.ReadUint16()               // minorVersion
	metaOffset := r.ReadUint32()     // metaOffset
	metaLength := r.ReadUint32()     // metaLength
	metaOrigLength := r.ReadUint32() // metaOrigLength
	privOffset := r.ReadUint32()     // privOffset
	privLength := r.ReadUint32()     // privLength

	frontSize := 44 + 20*uint32(numTables) // can never exceed uint32 as numTables is uint16
	if length != uint32(len(b)) {
		return nil, fmt.Errorf("length in header must match file size")
	} else if numTables == 0 || length <= frontSize {
		return nil, fmt.Errorf("numTables in header must not be zero")
	} else if reserved != 0 {
		return nil, fmt.Errorf("reserved in header must be zero")
	}

	tables := []woffTable{}
	tablePos := &tablePositions{[]uint32{}, []uint32{}}
	tablePos.Add(0, frontSize)
	sfntOffset := 12 + 16*uint32(numTables) // can never exceed uint32 as numTables is uint16
	for i := 0; i < int(numTables); i++ {
		// EOF already checked above
		tag := uint32ToString(r.ReadUint32())
		offset := r.ReadUint32()
		compLength := r.ReadUint32()
		origLength := r.ReadUint32()
		origChecksum := r.ReadUint32()
		if length < compLength || length-compLength < offset {
			return nil, fmt.Errorf("table extends beyond file size")
		} else if origLength < compLength {
			return nil, fmt.Errorf("compressed table size is larger than decompressed size")
		} else if 0 < i && tag < tables[i-1].tag {
			return nil, fmt.Errorf("tables are not sorted alphabetically")
		}
		sfntOrigLength := (origLength + 3) & 0xFFFFFFFC // add padding
		if math.MaxUint32-sfntOrigLength < sfntOffset {
			return nil, ErrInvalidFontData
		}
		sfntOffset += sfntOrigLength

		tables = append(tables, woffTable{
			tag:          tag,
			offset:       offset,
			length:       compLength,
			origLength:   origLength,
			origChecksum: origChecksum,
		})
		tablePos.Add(offset, compLength)
	}

	if totalSfntSize != sfntOffset {
		return nil, fmt.Errorf("totalSfntSize is incorrect")
	}
	if (metaOffset == 0) != (metaLength == 0) || (metaOffset == 0) != (metaOrigLength == 0) {
		return nil, ErrInvalidFontData
	} else if metaOffset != 0 {
		tablePos.Add(metaOffset, metaLength)
	}
	if (privOffset == 0) != (privLength == 0) {
		return nil, ErrInvalidFontData
	} else if privOffset != 0 {
		tablePos.Add(privOffset, privLength)
	}
	if tablePos.HasOverlap() {
		return nil, fmt.Errorf("tables can not overlap")
	}

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

	w := parse.NewBinaryWriter(make([]byte, 0, totalSfntSize))
	w.WriteUint32(flavor)
	w.WriteUint16(numTables)
	w.WriteUint16(searchRange)
	w.WriteUint16(entrySelector)
	w.WriteUint16(rangeShift)

	sfntOffset = 12 + 16*uint32(numTables) // can never exceed uint32 as numTables is uint16
	for _, table := range tables {
		w.WriteString(table.tag)
		w.WriteUint32(table.origChecksum)
		w.WriteUint32(sfntOffset) // offset already verified
		w.WriteUint32(table.origLength)
		sfntOffset += (table.origLength + 3) & 0xFFFFFFFC // add padding
	}

	var iCheckSumAdjustment uint32
	var checkSumAdjustment uint32
	for _, table := range tables {
		data := b[table.offset : table.offset+table.length : table.offset+table.length]
		if table.length != table.origLength {
			var buf bytes.Buffer
			zr, err := zlib.NewReader(bytes.NewReader(data))
			if err != nil {
				return nil, fmt.Errorf("%s: %v", table.tag, err)
			}
			if _, err = io.Copy(&buf, zr); err != nil {
				return nil, fmt.Errorf("%s: %v", table.tag, err)
			}
			if err = zr.Close(); err != nil {
				return nil, fmt.Errorf("%s: %v", table.tag, err)
			}
			data = buf.Bytes()
		}

		if len(data) != int(table.origLength) {
			return nil, fmt.Errorf("decompressed table length must be equal to origLength")
		}

		// add padding
		nPadding := (4 - len(data)&3) & 3
		for i := 0; i < nPadding; i++ {
			data = append(data, 0x00)
		}
		if table.tag == "head" {
			if len(data) < 12 {
				return nil, ErrInvalidFontData
			}
			// copy to avoid altering the input when the table was stored raw
			data = append([]byte{}, data...)
			checkSumAdjustment = binary.BigEndian.Uint32(data[8:])
			iCheckSumAdjustment = w.Len() + 8

			// the head table's checksum is taken with its adjustment zeroed
			binary.BigEndian.PutUint32(data[8:], 0x00000000)
			if calcChecksum(data) != table.origChecksum {
				return nil, fmt.Errorf("%s: bad checksum", table.tag)
			}
		} else if calcChecksum(data) != table.origChecksum {
			return nil, fmt.Errorf("%s: bad checksum", table.tag)
		}

		w.WriteBytes(data)
	}
	if w.Len() != totalSfntSize {
		return nil, ErrInvalidFontData
	}
	if iCheckSumAdjustment == 0 {
		return nil, ErrInvalidFontData
	}

	// restore the stored checkSumAdjustment in the head table
	buf := w.Bytes()
	binary.BigEndian.PutUint32(buf[iCheckSumAdjustment:], checkSumAdjustment)
	return buf, nil
}

// WriteWOFF serializes the font as a WOFF 1.0 container. Tables are
// individually zlib-compressed; the raw table is kept whenever compression
// does not shrink it. See https://www.w3.org/TR/WOFF/
func (sfnt *SFNT) WriteWOFF() ([]byte, error) {
	// serialize a plain SFNT first so that table checksums and the head
	// checkSumAdjustment match the container a WOFF reader reconstructs
	plain, err := ParseSFNT(sfnt.Write())
	if err != nil {
		return nil, err
	}

	tables := make([]Table, len(plain.Tables))
	copy(tables, plain.Tables)
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].Tag < tables[j].Tag
	})

	numTables := uint16(len(tables))
	frontSize := 44 + 20*uint32(numTables)
	totalSfntSize := 12 + 16*uint32(numTables)

	datas := make([][]byte, len(tables))
	checksums := make([]uint32, len(tables))
	totalSize := frontSize
	for i, table := range tables {
		origLength := uint32(len(table.Data))
		totalSfntSize += (origLength + 3) & 0xFFFFFFFC

		data := table.Data
		if table.Tag == "head" && 12 <= len(data) {
			// checksum with the adjustment zeroed, as in the table directory
			zeroed := make([]byte, len(data))
			copy(zeroed, data)
			binary.BigEndian.PutUint32(zeroed[8:], 0x00000000)
			checksums[i] = calcChecksum(zeroed)
		} else {
			checksums[i] = calcChecksum(data)
		}

		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		if _, err := zw.Write(data); err != nil {
			return nil, err
		} else if err := zw.Close(); err != nil {
			return nil, err
		}
		if uint32(buf.Len()) < origLength {
			data = buf.Bytes()
		}
		datas[i] = data
		totalSize += (uint32(len(data)) + 3) & 0xFFFFFFFC
	}

	var majorVersion, minorVersion uint16
	if plain.Head != nil {
		majorVersion = uint16(plain.Head.FontRevision >> 16)
		minorVersion = uint16(plain.Head.FontRevision)
	}

	w := parse.NewBinaryWriter(make([]byte, 0, totalSize))
	w.WriteString("wOFF")
	w.WriteString(plain.Version)
	w.WriteUint32(totalSize)
	w.WriteUint16(numTables)
	w.WriteUint16(0) // reserved
	w.WriteUint32(totalSfntSize)
	w.WriteUint16(majorVersion)
	w.WriteUint16(minorVersion)
	w.WriteUint32(0) // metaOffset
	w.WriteUint32(0) // metaLength
	w.WriteUint32(0) // metaOrigLength
	w.WriteUint32(0) // privOffset
	w.WriteUint32(0) // privLength

	offset := frontSize
	for i, table := range tables {
		w.WriteString(table.Tag)
		w.WriteUint32(offset)
		w.WriteUint32(uint32(len(datas[i])))
		w.WriteUint32(uint32(len(table.Data)))
		w.WriteUint32(checksums[i])
		offset += (uint32(len(datas[i])) + 3) & 0xFFFFFFFC
	}
	for _, data := range datas {
		w.WriteBytes(data)
		nPadding := (4 - len(data)&3) & 3
		for n := 0; n < nPadding; n++ {
			w.WriteUint8(0x00)
		}
	}
	return w.Bytes(), nil
}
