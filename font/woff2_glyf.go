package font

import (
	"encoding/binary"
	"fmt"

	"github.com/tdewolff/parse/v2"
)

// read255UInt16 reads a variable-length uint16 as defined by WOFF2.
func read255UInt16(r *parse.BinaryReader) (uint16, error) {
	if r.Len() < 1 {
		return 0, ErrInvalidFontData
	}
	code := r.ReadUint8()
	switch code {
	case 253:
		if r.Len() < 2 {
			return 0, ErrInvalidFontData
		}
		return r.ReadUint16(), nil
	case 254:
		if r.Len() < 1 {
			return 0, ErrInvalidFontData
		}
		return uint16(r.ReadUint8()) + 506, nil
	case 255:
		if r.Len() < 1 {
			return 0, ErrInvalidFontData
		}
		return uint16(r.ReadUint8()) + 253, nil
	}
	return uint16(code), nil
}

// readBase128 reads a variable-length uint32 as defined by WOFF2.
func readBase128(r *parse.BinaryReader) (uint32, error) {
	var accum uint32
	for i := 0; i < 5; i++ {
		if r.Len() < 1 {
			return 0, ErrInvalidFontData
		}
		c := r.ReadUint8()
		if i == 0 && c == 0x80 {
			return 0, fmt.Errorf("UIntBase128 must not have leading zeros")
		} else if accum&0xFE000000 != 0 {
			return 0, fmt.Errorf("UIntBase128 overflows uint32")
		}
		accum = accum<<7 | uint32(c&0x7F)
		if c&0x80 == 0 {
			return accum, nil
		}
	}
	return 0, fmt.Errorf("UIntBase128 exceeds five bytes")
}

func writeBase128(w *parse.BinaryWriter, v uint32) {
	n := 1
	for 1<<(7*n) <= uint64(v) && n < 5 {
		n++
	}
	for i := n - 1; 0 <= i; i-- {
		c := uint8(v>>(7*i)) & 0x7F
		if i != 0 {
			c |= 0x80
		}
		w.WriteUint8(c)
	}
}

type glyfPoint struct {
	dx, dy  int
	onCurve bool
}

func withSign(flag int, v int) int {
	if flag&1 != 0 {
		return v
	}
	return -v
}

// decodeTriplets decodes the variable-length point encoding of the WOFF2
// transformed glyf table. Each flag byte selects one of 128 encodings of the
// coordinate deltas, the data bytes coming from the glyph stream.
func decodeTriplets(flags []byte, glyphStream *parse.BinaryReader) ([]glyfPoint, error) {
	points := make([]glyfPoint, len(flags))
	for i, flag := range flags {
		onCurve := flag&0x80 == 0
		index := int(flag & 0x7F)

		var nBytes uint32
		switch {
		case index < 84:
			nBytes = 1
		case index < 120:
			nBytes = 2
		case index < 124:
			nBytes = 3
		default:
			nBytes = 4
		}
		if glyphStream.Len() < nBytes {
			return nil, ErrInvalidFontData
		}
		d := glyphStream.ReadBytes(nBytes)

		var dx, dy int
		switch {
		case index < 10:
			dx = 0
			dy = withSign(index, ((index&14)<<7)+int(d[0]))
		case index < 20:
			dx = withSign(index, (((index-10)&14)<<7)+int(d[0]))
			dy = 0
		case index < 84:
			b0 := index - 20
			b1 := int(d[0])
			dx = withSign(index, 1+(b0&0x30)+(b1>>4))
			dy = withSign(index>>1, 1+((b0&0x0C)<<2)+(b1&0x0F))
		case index < 120:
			b0 := index - 84
			dx = withSign(index, 1+((b0/12)<<8)+int(d[0]))
			dy = withSign(index>>1, 1+(((b0%12)>>2)<<8)+int(d[1]))
		case index < 124:
			dx = withSign(index, (int(d[0])<<4)+(int(d[1])>>4))
			dy = withSign(index>>1, ((int(d[1])&0x0F)<<8)+int(d[2]))
		default:
			dx = withSign(index, (int(d[0])<<8)+int(d[1]))
			dy = withSign(index>>1, (int(d[2])<<8)+int(d[3]))
		}
		points[i] = glyfPoint{dx, dy, onCurve}
	}
	return points, nil
}

type reconstructedGlyf struct {
	glyf        []byte
	loca        []byte
	xMins       []int16
	numGlyphs   uint16
	indexFormat uint16
}

// composite glyph flags
const (
	argsAreWords       = 0x0001
	weHaveAScale       = 0x0008
	moreComponents     = 0x0020
	weHaveAnXAndYScale = 0x0040
	weHaveATwoByTwo    = 0x0080
	weHaveInstructions = 0x0100
)

// reconstructGlyf rebuilds the standard glyf and loca tables from the WOFF2
// transformed glyf table. See https://www.w3.org/TR/WOFF2/#glyf_table_format
func reconstructGlyf(b []byte) (*reconstructedGlyf, error) {
	if len(b) < 36 {
		return nil, fmt.Errorf("glyf: bad transformed table")
	}
	r := parse.NewBinaryReader(b)
	_ = r.ReadUint32() // version, reserved
	numGlyphs := r.ReadUint16()
	indexFormat := r.ReadUint16()
	if indexFormat != 0 && indexFormat != 1 {
		return nil, fmt.Errorf("glyf: bad indexFormat")
	}

	streamSizes := make([]uint32, 7)
	streamTotal := uint32(36)
	for i := range streamSizes {
		streamSizes[i] = r.ReadUint32()
		if uint32(len(b))-streamTotal < streamSizes[i] {
			return nil, fmt.Errorf("glyf: stream extends beyond transformed table")
		}
		streamTotal += streamSizes[i]
	}
	nContourStream := parse.NewBinaryReader(r.ReadBytes(streamSizes[0]))
	nPointsStream := parse.NewBinaryReader(r.ReadBytes(streamSizes[1]))
	flagStream := parse.NewBinaryReader(r.ReadBytes(streamSizes[2]))
	glyphStream := parse.NewBinaryReader(r.ReadBytes(streamSizes[3]))
	compositeStream := r.ReadBytes(streamSizes[4])
	bboxStream := r.ReadBytes(streamSizes[5])
	instructionStream := parse.NewBinaryReader(r.ReadBytes(streamSizes[6]))

	if streamSizes[0] != 2*uint32(numGlyphs) {
		return nil, fmt.Errorf("glyf: bad nContour stream size")
	}
	bboxBitmapSize := ((uint32(numGlyphs) + 31) >> 5) << 2
	if uint32(len(bboxStream)) < bboxBitmapSize {
		return nil, fmt.Errorf("glyf: bad bounding box stream size")
	}
	bboxBitmap := bboxStream[:bboxBitmapSize]
	bboxes := parse.NewBinaryReader(bboxStream[bboxBitmapSize:])

	glyphs := make([][]byte, numGlyphs)
	xMins := make([]int16, numGlyphs)
	var compositePos int
	var glyfSize uint32
	for i := 0; i < int(numGlyphs); i++ {
		nContours := nContourStream.ReadInt16()
		hasBBox := bboxBitmap[i>>3]&(0x80>>(i&7)) != 0

		if nContours == 0 {
			// empty glyph
			if hasBBox {
				return nil, fmt.Errorf("glyf: empty glyph must not have a bounding box")
			}
			continue
		}

		w := parse.NewBinaryWriter([]byte{})
		if nContours < 0 {
			// composite glyph; component data is copied verbatim
			if !hasBBox {
				return nil, fmt.Errorf("glyf: composite glyph must have a bounding box")
			} else if bboxes.Len() < 8 {
				return nil, ErrInvalidFontData
			}
			bbox := bboxes.ReadBytes(8)
			xMins[i] = int16(binary.BigEndian.Uint16(bbox))

			start := compositePos
			more := true
			haveInstructions := false
			for more {
				if len(compositeStream) < compositePos+4 {
					return nil, fmt.Errorf("glyf: bad composite stream")
				}
				flags := binary.BigEndian.Uint16(compositeStream[compositePos:])
				size := 4 // flags and glyphIndex
				if flags&argsAreWords != 0 {
					size += 4
				} else {
					size += 2
				}
				if flags&weHaveAScale != 0 {
					size += 2
				} else if flags&weHaveAnXAndYScale != 0 {
					size += 4
				} else if flags&weHaveATwoByTwo != 0 {
					size += 8
				}
				if len(compositeStream) < compositePos+size {
					return nil, fmt.Errorf("glyf: bad composite stream")
				}
				compositePos += size
				more = flags&moreComponents != 0
				haveInstructions = haveInstructions || flags&weHaveInstructions != 0
			}

			w.WriteInt16(-1)
			w.WriteBytes(bbox)
			w.WriteBytes(compositeStream[start:compositePos])
			if haveInstructions {
				instructionLength, err := read255UInt16(glyphStream)
				if err != nil {
					return nil, err
				} else if instructionStream.Len() < uint32(instructionLength) {
					return nil, ErrInvalidFontData
				}
				w.WriteUint16(instructionLength)
				w.WriteBytes(instructionStream.ReadBytes(uint32(instructionLength)))
			}
		} else {
			// simple glyph
			endPts := make([]uint16, nContours)
			var nPoints uint16
			for j := 0; j < int(nContours); j++ {
				n, err := read255UInt16(nPointsStream)
				if err != nil {
					return nil, err
				} else if 0xFFFF-n < nPoints {
					return nil, fmt.Errorf("glyf: too many points")
				}
				nPoints += n
				endPts[j] = nPoints - 1
			}
			if flagStream.Len() < uint32(nPoints) {
				return nil, ErrInvalidFontData
			}
			points, err := decodeTriplets(flagStream.ReadBytes(uint32(nPoints)), glyphStream)
			if err != nil {
				return nil, err
			}
			instructionLength, err := read255UInt16(glyphStream)
			if err != nil {
				return nil, err
			} else if instructionStream.Len() < uint32(instructionLength) {
				return nil, ErrInvalidFontData
			}
			instructions := instructionStream.ReadBytes(uint32(instructionLength))

			var bbox [8]byte
			var x, y int
			xMin, yMin := 0x7FFF, 0x7FFF
			xMax, yMax := -0x8000, -0x8000
			for _, point := range points {
				// triplets can encode deltas the standard coordinate arrays
				// cannot hold
				if point.dx < -0x8000 || 0x7FFF < point.dx || point.dy < -0x8000 || 0x7FFF < point.dy {
					return nil, fmt.Errorf("glyf: coordinate delta overflow")
				}
				x += point.dx
				y += point.dy
				if x < -0x8000 || 0x7FFF < x || y < -0x8000 || 0x7FFF < y {
					return nil, fmt.Errorf("glyf: coordinate overflow")
				}
				xMin = min(xMin, x)
				yMin = min(yMin, y)
				xMax = max(xMax, x)
				yMax = max(yMax, y)
			}
			if len(points) == 0 {
				xMin, yMin, xMax, yMax = 0, 0, 0, 0
			}
			if hasBBox {
				if bboxes.Len() < 8 {
					return nil, ErrInvalidFontData
				}
				copy(bbox[:], bboxes.ReadBytes(8))
			} else {
				binary.BigEndian.PutUint16(bbox[0:], uint16(int16(xMin)))
				binary.BigEndian.PutUint16(bbox[2:], uint16(int16(yMin)))
				binary.BigEndian.PutUint16(bbox[4:], uint16(int16(xMax)))
				binary.BigEndian.PutUint16(bbox[6:], uint16(int16(yMax)))
			}
			xMins[i] = int16(binary.BigEndian.Uint16(bbox[:]))

			w.WriteInt16(nContours)
			w.WriteBytes(bbox[:])
			for _, endPt := range endPts {
				w.WriteUint16(endPt)
			}
			w.WriteUint16(instructionLength)
			w.WriteBytes(instructions)
			writeSimpleGlyphPoints(w, points)
		}

		if w.Len()&1 != 0 {
			w.WriteUint8(0x00) // keep loca offsets even
		}
		glyphs[i] = w.Bytes()
		glyfSize += w.Len()
	}

	// concatenate the glyphs and rebuild loca
	glyf := parse.NewBinaryWriter(make([]byte, 0, glyfSize))
	var locaSize uint32
	if indexFormat == 0 {
		locaSize = 2 * (uint32(numGlyphs) + 1)
	} else {
		locaSize = 4 * (uint32(numGlyphs) + 1)
	}
	loca := parse.NewBinaryWriter(make([]byte, 0, locaSize))
	writeLocaOffset := func(offset uint32) error {
		if indexFormat == 0 {
			if 0x1FFFE < offset {
				return fmt.Errorf("loca: glyf table too large for short index format")
			}
			loca.WriteUint16(uint16(offset >> 1))
		} else {
			loca.WriteUint32(offset)
		}
		return nil
	}
	for _, glyph := range glyphs {
		if err := writeLocaOffset(glyf.Len()); err != nil {
			return nil, err
		}
		glyf.WriteBytes(glyph)
	}
	if err := writeLocaOffset(glyf.Len()); err != nil {
		return nil, err
	}

	return &reconstructedGlyf{
		glyf:        glyf.Bytes(),
		loca:        loca.Bytes(),
		xMins:       xMins,
		numGlyphs:   numGlyphs,
		indexFormat: indexFormat,
	}, nil
}

// writeSimpleGlyphPoints encodes the point flags and coordinate arrays of a
// standard simple glyph. Flags are written per point without run-length
// repeats.
func writeSimpleGlyphPoints(w *parse.BinaryWriter, points []glyfPoint) {
	const (
		onCurvePoint  = 0x01
		xShortVector  = 0x02
		yShortVector  = 0x04
		xIsSameOrPlus = 0x10
		yIsSameOrPlus = 0x20
	)
	for _, point := range points {
		var flag uint8
		if point.onCurve {
			flag |= onCurvePoint
		}
		switch {
		case point.dx == 0:
			flag |= xIsSameOrPlus
		case -255 <= point.dx && point.dx <= 255:
			flag |= xShortVector
			if 0 < point.dx {
				flag |= xIsSameOrPlus
			}
		}
		switch {
		case point.dy == 0:
			flag |= yIsSameOrPlus
		case -255 <= point.dy && point.dy <= 255:
			flag |= yShortVector
			if 0 < point.dy {
				flag |= yIsSameOrPlus
			}
		}
		w.WriteUint8(flag)
	}
	for _, point := range points {
		if point.dx == 0 {
			continue
		} else if -255 <= point.dx && point.dx <= 255 {
			if point.dx < 0 {
				w.WriteUint8(uint8(-point.dx))
			} else {
				w.WriteUint8(uint8(point.dx))
			}
		} else {
			w.WriteInt16(int16(point.dx))
		}
	}
	for _, point := range points {
		if point.dy == 0 {
			continue
		} else if -255 <= point.dy && point.dy <= 255 {
			if point.dy < 0 {
				w.WriteUint8(uint8(-point.dy))
			} else {
				w.WriteUint8(uint8(point.dy))
			}
		} else {
			w.WriteInt16(int16(point.dy))
		}
	}
}

// reconstructHmtx rebuilds the standard hmtx table from the WOFF2 transformed
// hmtx table, taking omitted left side bearings from the glyph xMin values.
// See https://www.w3.org/TR/WOFF2/#hmtx_table_format
func reconstructHmtx(b []byte, numGlyphs, numberOfHMetrics uint16, xMins []int16) ([]byte, error) {
	r := parse.NewBinaryReader(b)
	if len(b) < 1 {
		return nil, fmt.Errorf("hmtx: bad transformed table")
	}
	flags := r.ReadUint8()
	if flags&0xFC != 0 || flags == 0 {
		return nil, fmt.Errorf("hmtx: bad transform flags")
	}
	omitProportionalLsbs := flags&0x01 != 0
	omitMonospaceLsbs := flags&0x02 != 0
	if len(xMins) != int(numGlyphs) {
		return nil, fmt.Errorf("hmtx: bad number of glyph xMin values")
	}

	advances := make([]uint16, numberOfHMetrics)
	if r.Len() < 2*uint32(numberOfHMetrics) {
		return nil, fmt.Errorf("hmtx: bad transformed table")
	}
	for i := range advances {
		advances[i] = r.ReadUint16()
	}
	lsbs := make([]int16, numGlyphs)
	for i := uint16(0); i < numGlyphs; i++ {
		omitted := omitProportionalLsbs
		if numberOfHMetrics <= i {
			omitted = omitMonospaceLsbs
		}
		if omitted {
			lsbs[i] = xMins[i]
		} else {
			if r.Len() < 2 {
				return nil, fmt.Errorf("hmtx: bad transformed table")
			}
			lsbs[i] = r.ReadInt16()
		}
	}

	w := parse.NewBinaryWriter(make([]byte, 0, 4*uint32(numberOfHMetrics)+2*uint32(numGlyphs-numberOfHMetrics)))
	for i := uint16(0); i < numGlyphs; i++ {
		if i < numberOfHMetrics {
			w.WriteUint16(advances[i])
		}
		w.WriteInt16(lsbs[i])
	}
	return w.Bytes(), nil
}
