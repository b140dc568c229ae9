package font

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/andybalholm/brotli"
	"github.com/tdewolff/parse/v2"
)

type woff2Table struct {
	tag              string
	origLength       uint32
	transformVersion int
	transformLength  uint32
}

var woff2TableTags = []string{
	"cmap", "head", "hhea", "hmtx",
	"maxp", "name", "OS/2", "post",
	"cvt ", "fpgm", "glyf", "loca",
	"prep", "CFF ", "VORG", "EBDT",
	"EBLC", "gasp", "hdmx", "kern",
	"LTSH", "PCLT", "VDMX", "vhea",
	"vmtx", "BASE", "GDEF", "GPOS",
	"GSUB", "EBSC", "JSTF", "MATH",
	"CBDT", "CBLC", "COLR", "CPAL",
	"SVG ", "sbix", "acnt", "avar",
	"bdat", "bloc", "bsln", "cvar",
	"fdsc", "feat", "fmtx", "fvar",
	"gvar", "hsty", "just", "lcar",
	"mort", "morx", "opbd", "prop",
	"trak", "Zapf", "Silf", "Glat",
	"Gloc", "Feat", "Sill",
}

func woff2TableIndex(tag string) uint8 {
	for i, t := range woff2TableTags {
		if t == tag {
			return uint8(i)
		}
	}
	return 63
}

// ParseWOFF2 parses the WOFF2 font format and returns its contained SFNT font
// format (TTF or OTF), reconstructing any transformed glyf, loca, and hmtx
// tables. See https://www.w3.org/TR/WOFF2/
func ParseWOFF2(b []byte) ([]byte, error) {
	if len(b) < 48 {
		return nil, ErrInvalidFontData
	}

	r := parse.NewBinaryReader(b)
	signature := r.ReadString(4)
	if signature != "wOF2" {
		return nil, fmt.Errorf("bad signature")
	}
	flavor := r.ReadUint32()
	if uint32ToString(flavor) == "ttcf" {
		return nil, fmt.Errorf("collections are unsupported")
	}
	length := r.ReadUint32()
	numTables := r.ReadUint16()
	reserved := r.ReadUint16()
	_ = r.ReadUint32() // totalSfntSize, informative only
	totalCompressedSize := r.ReadUint32()
	_ = r.ReadUint16() // majorVersion
	_ = r.ReadUint16() // minorVersion
	_ = r.ReadUint32() // metaOffset
	_ = r.ReadUint32() // metaLength
	_ = r.ReadUint32() // metaOrigLength
	_ = r.ReadUint32() // privOffset
	_ = r.ReadUint32() // privLength

	if length != uint32(len(b)) {
		return nil, fmt.Errorf("length in header must match file size")
	} else if numTables == 0 {
		return nil, fmt.Errorf("numTables in header must not be zero")
	} else if reserved != 0 {
		return nil, fmt.Errorf("reserved in header must be zero")
	}

	tables := []woff2Table{}
	var uncompressedSize uint32
	for i := 0; i < int(numTables); i++ {
		if r.Len() < 1 {
			return nil, ErrInvalidFontData
		}
		flags := r.ReadUint8()
		tagIndex := int(flags & 0x3F)
		transformVersion := int((flags & 0xC0) >> 6)

		var tag string
		if tagIndex == 63 {
			if r.Len() < 4 {
				return nil, ErrInvalidFontData
			}
			tag = r.ReadString(4)
		} else {
			tag = woff2TableTags[tagIndex]
		}
		origLength, err := readBase128(r)
		if err != nil {
			return nil, err
		}

		// glyf and loca use transform version 0 for the transformed state and
		// 3 for the null transform; all other tables are the other way around
		transformed := transformVersion != 0
		if tag == "glyf" || tag == "loca" {
			transformed = transformVersion == 0
		}

		var transformLength uint32
		if transformed {
			if transformLength, err = readBase128(r); err != nil {
				return nil, err
			}
			if tag == "loca" && transformLength != 0 {
				return nil, fmt.Errorf("loca: transformLength must be zero")
			}
		}
		n := origLength
		if transformed {
			n = transformLength
		}
		if math.MaxUint32-n < uncompressedSize {
			return nil, ErrInvalidFontData
		}
		uncompressedSize += n

		tables = append(tables, woff2Table{
			tag:              tag,
			origLength:       origLength,
			transformVersion: transformVersion,
			transformLength:  transformLength,
		})
	}

	if uint32(len(b))-r.Pos() < totalCompressedSize {
		return nil, fmt.Errorf("table data extends beyond file size")
	}
	compressed := r.ReadBytes(totalCompressedSize)

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, brotli.NewReader(bytes.NewReader(compressed))); err != nil {
		return nil, fmt.Errorf("brotli: %v", err)
	}
	data := buf.Bytes()
	if uint32(len(data)) != uncompressedSize {
		return nil, fmt.Errorf("decompressed size does not match table directory")
	}

	// slice the decompressed stream into tables, reconstructing the
	// transformed ones
	out := make([]Table, len(tables))
	var glyf *reconstructedGlyf
	hmtxIndex := -1
	var hmtxData []byte
	var offset uint32
	for i, table := range tables {
		transformed := table.transformVersion != 0
		if table.tag == "glyf" || table.tag == "loca" {
			transformed = table.transformVersion == 0
		}
		n := table.origLength
		if transformed {
			n = table.transformLength
		}
		tableData := data[offset : offset+n : offset+n]
		offset += n

		out[i] = Table{Tag: table.tag, Data: tableData}
		switch table.tag {
		case "glyf":
			if transformed {
				var err error
				if glyf, err = reconstructGlyf(tableData); err != nil {
					return nil, err
				}
				out[i].Data = glyf.glyf
			} else if table.transformVersion != 3 {
				return nil, fmt.Errorf("glyf: unknown transformation")
			}
		case "loca":
			if transformed {
				if glyf == nil {
					return nil, fmt.Errorf("loca: transformed loca requires preceding transformed glyf table")
				}
				out[i].Data = glyf.loca
			} else if table.transformVersion != 3 {
				return nil, fmt.Errorf("loca: unknown transformation")
			}
		case "hmtx":
			if table.transformVersion == 1 {
				hmtxIndex = i
				hmtxData = tableData
			} else if table.transformVersion != 0 {
				return nil, fmt.Errorf("hmtx: unknown transformation")
			}
		default:
			if table.transformVersion != 0 {
				return nil, fmt.Errorf("%s: unknown transformation", table.tag)
			}
		}
	}

	// the hmtx transform needs numGlyphs, numberOfHMetrics, and the glyph
	// xMin values from the reconstructed glyf table
	if hmtxIndex != -1 {
		if glyf == nil {
			return nil, fmt.Errorf("hmtx: transformed hmtx requires transformed glyf table")
		}
		var numberOfHMetrics uint16
		for _, table := range out {
			if table.Tag == "hhea" {
				if len(table.Data) != 36 {
					return nil, fmt.Errorf("hhea: bad table")
				}
				numberOfHMetrics = binary.BigEndian.Uint16(table.Data[34:])
			}
		}
		if numberOfHMetrics == 0 || glyf.numGlyphs < numberOfHMetrics {
			return nil, fmt.Errorf("hmtx: bad numberOfHMetrics")
		}
		hmtx, err := reconstructHmtx(hmtxData, glyf.numGlyphs, numberOfHMetrics, glyf.xMins)
		if err != nil {
			return nil, err
		}
		out[hmtxIndex].Data = hmtx
	}

	// the reconstructed loca format must agree with head
	if glyf != nil {
		for _, table := range out {
			if table.Tag == "head" {
				if len(table.Data) != 54 {
					return nil, fmt.Errorf("head: bad table")
				} else if binary.BigEndian.Uint16(table.Data[50:]) != glyf.indexFormat {
					return nil, fmt.Errorf("head: indexToLocFormat does not match transformed glyf table")
				}
			}
		}
	}
	// the SFNT table directory is sorted by tag, independent of the WOFF2
	// directory order
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Tag < out[j].Tag
	})
	return writeSFNT(uint32ToString(flavor), out), nil
}

// WriteWOFF2 serializes the font as a WOFF2 container with all tables in
// untransformed form, compressed as a single Brotli stream.
// See https://www.w3.org/TR/WOFF2/
func (sfnt *SFNT) WriteWOFF2() ([]byte, error) {
	// serialize a plain SFNT first so that the head checkSumAdjustment in the
	// compressed table data matches the container a WOFF2 reader reconstructs
	plain, err := ParseSFNT(sfnt.Write())
	if err != nil {
		return nil, err
	}

	tables := make([]Table, len(plain.Tables))
	copy(tables, plain.Tables)
	sort.SliceStable(tables, func(i, j int) bool {
		return tables[i].Tag < tables[j].Tag
	})

	// the loca entry must immediately follow glyf in the table directory
	glyfIndex, locaIndex := -1, -1
	for i, table := range tables {
		if table.Tag == "glyf" {
			glyfIndex = i
		} else if table.Tag == "loca" {
			locaIndex = i
		}
	}
	if glyfIndex != -1 && locaIndex != -1 && locaIndex != glyfIndex+1 {
		loca := tables[locaIndex]
		tables = append(tables[:locaIndex], tables[locaIndex+1:]...)
		tables = append(tables[:glyfIndex+1], append([]Table{loca}, tables[glyfIndex+1:]...)...)
	}

	numTables := uint16(len(tables))
	totalSfntSize := 12 + 16*uint32(numTables)

	dir := parse.NewBinaryWriter([]byte{})
	var uncompressed bytes.Buffer
	for _, table := range tables {
		index := woff2TableIndex(table.Tag)
		var transformVersion uint8
		if table.Tag == "glyf" || table.Tag == "loca" {
			transformVersion = 3 // null transform
		}
		dir.WriteUint8(index | transformVersion<<6)
		if index == 63 {
			dir.WriteString(table.Tag)
		}
		writeBase128(dir, uint32(len(table.Data)))
		totalSfntSize += (uint32(len(table.Data)) + 3) & 0xFFFFFFFC
		uncompressed.Write(table.Data)
	}

	var compressed bytes.Buffer
	bw := brotli.NewWriterLevel(&compressed, brotli.BestCompression)
	if _, err := bw.Write(uncompressed.Bytes()); err != nil {
		return nil, err
	} else if err := bw.Close(); err != nil {
		return nil, err
	}

	var majorVersion, minorVersion uint16
	if plain.Head != nil {
		majorVersion = uint16(plain.Head.FontRevision >> 16)
		minorVersion = uint16(plain.Head.FontRevision)
	}

	totalSize := 48 + dir.Len() + uint32(compressed.Len())
	w := parse.NewBinaryWriter(make([]byte, 0, totalSize))
	w.WriteString("wOF2")
	w.WriteString(plain.Version)
	w.WriteUint32(totalSize)
	w.WriteUint16(numTables)
	w.WriteUint16(0) // reserved
	w.WriteUint32(totalSfntSize)
	w.WriteUint32(uint32(compressed.Len()))
	w.WriteUint16(majorVersion)
	w.WriteUint16(minorVersion)
	w.WriteUint32(0) // metaOffset
	w.WriteUint32(0) // metaLength
	w.WriteUint32(0) // metaOrigLength
	w.WriteUint32(0) // privOffset
	w.WriteUint32(0) // privLength
	w.WriteBytes(dir.Bytes())
	w.WriteBytes(compressed.Bytes())
	return w.Bytes(), nil
}
