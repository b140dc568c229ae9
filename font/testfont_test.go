package font

import (
	"github.com/tdewolff/parse/v2"
)

// newTestSFNT assembles a minimal but complete TrueType font with two glyphs:
// .notdef (empty) and a square assigned to 'A'.
func newTestSFNT() *SFNT {
	head := parse.NewBinaryWriter([]byte{})
	head.WriteUint16(1)          // majorVersion
	head.WriteUint16(0)          // minorVersion
	head.WriteUint32(0x00010000) // fontRevision
	head.WriteUint32(0)          // checkSumAdjustment
	head.WriteUint32(0x5F0F3CF5) // magicNumber
	head.WriteUint16(0x0003)     // flags
	head.WriteUint16(1000)       // unitsPerEm
	head.WriteBytes(make([]byte, 16))
	head.WriteInt16(50)  // xMin
	head.WriteInt16(0)   // yMin
	head.WriteInt16(450) // xMax
	head.WriteInt16(500) // yMax
	head.WriteUint16(0)  // macStyle
	head.WriteUint16(8)  // lowestRecPPEM
	head.WriteInt16(2)   // fontDirectionHint
	head.WriteInt16(0)   // indexToLocFormat
	head.WriteInt16(0)   // glyphDataFormat

	hhea := parse.NewBinaryWriter([]byte{})
	hhea.WriteUint32(0x00010000)
	hhea.WriteInt16(800)  // ascender
	hhea.WriteInt16(-200) // descender
	hhea.WriteInt16(0)    // lineGap
	hhea.WriteUint16(600) // advanceWidthMax
	hhea.WriteInt16(50)   // minLeftSideBearing
	hhea.WriteInt16(50)   // minRightSideBearing
	hhea.WriteInt16(450)  // xMaxExtent
	hhea.WriteInt16(1)    // caretSlopeRise
	hhea.WriteInt16(0)    // caretSlopeRun
	hhea.WriteInt16(0)    // caretOffset
	hhea.WriteBytes(make([]byte, 8))
	hhea.WriteInt16(0)  // metricDataFormat
	hhea.WriteUint16(2) // numberOfHMetrics

	maxp := parse.NewBinaryWriter([]byte{})
	maxp.WriteUint32(0x00010000)
	maxp.WriteUint16(2) // numGlyphs
	maxp.WriteUint16(4) // maxPoints
	maxp.WriteUint16(1) // maxContours
	maxp.WriteUint16(0) // maxCompositePoints
	maxp.WriteUint16(0) // maxCompositeContours
	maxp.WriteUint16(2) // maxZones
	maxp.WriteBytes(make([]byte, 16))

	hmtx := parse.NewBinaryWriter([]byte{})
	hmtx.WriteUint16(600)
	hmtx.WriteInt16(50)
	hmtx.WriteUint16(600)
	hmtx.WriteInt16(50)

	// format 4 subtable mapping 'A' to glyph 1
	cmap := parse.NewBinaryWriter([]byte{})
	cmap.WriteUint16(0)  // version
	cmap.WriteUint16(1)  // numTables
	cmap.WriteUint16(3)  // platformID
	cmap.WriteUint16(1)  // encodingID
	cmap.WriteUint32(12) // subtableOffset
	cmap.WriteUint16(4)  // format
	cmap.WriteUint16(32) // length
	cmap.WriteUint16(0)  // language
	cmap.WriteUint16(4)  // segCountX2
	cmap.WriteUint16(4)  // searchRange
	cmap.WriteUint16(1)  // entrySelector
	cmap.WriteUint16(0)  // rangeShift
	cmap.WriteUint16(0x0041)
	cmap.WriteUint16(0xFFFF)
	cmap.WriteUint16(0) // reservedPad
	cmap.WriteUint16(0x0041)
	cmap.WriteUint16(0xFFFF)
	cmap.WriteInt16(-64) // idDelta: 'A' -> 1
	cmap.WriteInt16(1)   // idDelta: 0xFFFF -> 0
	cmap.WriteUint16(0)  // idRangeOffset
	cmap.WriteUint16(0)  // idRangeOffset

	// glyph 1: a single square contour of four on-curve points
	glyf := parse.NewBinaryWriter([]byte{})
	glyf.WriteInt16(1)   // numberOfContours
	glyf.WriteInt16(50)  // xMin
	glyf.WriteInt16(0)   // yMin
	glyf.WriteInt16(450) // xMax
	glyf.WriteInt16(500) // yMax
	glyf.WriteUint16(3)  // endPtsOfContours
	glyf.WriteUint16(0)  // instructionLength
	glyf.WriteUint8(0x33)
	glyf.WriteUint8(0x21)
	glyf.WriteUint8(0x11)
	glyf.WriteUint8(0x21)
	glyf.WriteUint8(50)    // dx 50
	glyf.WriteInt16(400)   // dx 400
	glyf.WriteInt16(-400)  // dx -400
	glyf.WriteInt16(500)   // dy 500
	glyf.WriteUint8(0x00)  // pad to even length

	loca := parse.NewBinaryWriter([]byte{})
	loca.WriteUint16(0)
	loca.WriteUint16(0)
	loca.WriteUint16(uint16(glyf.Len() / 2))

	name := parse.NewBinaryWriter([]byte{})
	family := []byte("\x00T\x00e\x00s\x00t")
	subfamily := []byte("\x00R\x00e\x00g\x00u\x00l\x00a\x00r")
	name.WriteUint16(0)  // version
	name.WriteUint16(2)  // count
	name.WriteUint16(30) // storageOffset
	name.WriteUint16(3)  // platformID
	name.WriteUint16(1)  // encodingID
	name.WriteUint16(0x0409)
	name.WriteUint16(1) // nameID: font family
	name.WriteUint16(uint16(len(family)))
	name.WriteUint16(0)
	name.WriteUint16(3) // platformID
	name.WriteUint16(1) // encodingID
	name.WriteUint16(0x0409)
	name.WriteUint16(2) // nameID: font subfamily
	name.WriteUint16(uint16(len(subfamily)))
	name.WriteUint16(uint16(len(family)))
	name.WriteBytes(family)
	name.WriteBytes(subfamily)

	post := parse.NewBinaryWriter([]byte{})
	post.WriteUint32(0x00030000)
	post.WriteUint32(0)   // italicAngle
	post.WriteInt16(-100) // underlinePosition
	post.WriteInt16(50)   // underlineThickness
	post.WriteUint32(0)   // isFixedPitch
	post.WriteBytes(make([]byte, 16))

	return &SFNT{
		Version:    "\x00\x01\x00\x00",
		IsTrueType: true,
		Tables: []Table{
			{"cmap", cmap.Bytes()},
			{"glyf", glyf.Bytes()},
			{"head", head.Bytes()},
			{"hhea", hhea.Bytes()},
			{"hmtx", hmtx.Bytes()},
			{"loca", loca.Bytes()},
			{"maxp", maxp.Bytes()},
			{"name", name.Bytes()},
			{"post", post.Bytes()},
		},
	}
}
