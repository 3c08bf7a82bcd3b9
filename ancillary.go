package png

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"io"
	"time"

	chunkpkg "github.com/pngcore/pngcodec/internal/chunk"
	"github.com/pngcore/pngcodec/internal/pngerr"
	"github.com/pngcore/pngcodec/internal/sample"
)

// parseIHDR fills info from a 13-byte IHDR payload, per spec.md §6's
// layout table, grounded on the teacher's IHDR struct (chunk.go).
func parseIHDR(data []byte, info *Info) error {
	if len(data) != 13 {
		return pngerr.New(pngerr.BadIHDR, "IHDR must be 13 bytes")
	}
	info.Width = int(binary.BigEndian.Uint32(data[0:4]))
	info.Height = int(binary.BigEndian.Uint32(data[4:8]))
	info.BitDepth = data[8]
	info.ColorType = ColorType(data[9])
	if data[10] != 0 {
		return pngerr.New(pngerr.BadIHDR, "unsupported compression method")
	}
	if data[11] != 0 {
		return pngerr.New(pngerr.BadIHDR, "unsupported filter method")
	}
	if data[12] > 1 {
		return pngerr.New(pngerr.BadIHDR, "unsupported interlace method")
	}
	info.Interlace = InterlaceMethod(data[12])
	return info.validate()
}

// parsePLTE expands a PLTE payload into an RGB palette (alpha defaults to
// opaque; a later tRNS chunk overrides it).
func parsePLTE(data []byte) (sample.Palette, error) {
	if len(data)%3 != 0 || len(data) == 0 {
		return nil, pngerr.New(pngerr.BadIHDR, "PLTE length must be a positive multiple of 3")
	}
	n := len(data) / 3
	if n > 256 {
		return nil, pngerr.New(pngerr.BadIHDR, "PLTE has more than 256 entries")
	}
	pal := make(sample.Palette, n)
	for i := 0; i < n; i++ {
		pal[i] = sample.PaletteEntry{R: data[i*3], G: data[i*3+1], B: data[i*3+2], A: 255}
	}
	return pal, nil
}

// parseTRNS interprets a tRNS payload according to the image's colour
// type, per spec.md §3's "palette-alpha vector or single transparent
// colour" description.
func parseTRNS(data []byte, ct ColorType, palLen int) (*sample.Transparency, error) {
	switch ct {
	case ColorPaletted:
		if len(data) > palLen {
			return nil, pngerr.New(pngerr.PaletteOutOfRange, "tRNS longer than palette")
		}
		alphas := make([]uint8, len(data))
		copy(alphas, data)
		return &sample.Transparency{PaletteAlpha: alphas}, nil
	case ColorGreyscale:
		if len(data) != 2 {
			return nil, pngerr.New(pngerr.BadIHDR, "tRNS for greyscale must be 2 bytes")
		}
		v := binary.BigEndian.Uint16(data)
		return &sample.Transparency{GreyKey: &v}, nil
	case ColorTrueColor:
		if len(data) != 6 {
			return nil, pngerr.New(pngerr.BadIHDR, "tRNS for truecolor must be 6 bytes")
		}
		var k [3]uint16
		k[0] = binary.BigEndian.Uint16(data[0:2])
		k[1] = binary.BigEndian.Uint16(data[2:4])
		k[2] = binary.BigEndian.Uint16(data[4:6])
		return &sample.Transparency{RGBKey: &k}, nil
	default:
		return nil, pngerr.New(pngerr.UnexpectedChunk, "tRNS not valid for this colour type")
	}
}

func parseGAMA(data []byte) (*uint32, error) {
	if len(data) != 4 {
		return nil, pngerr.New(pngerr.BadIHDR, "gAMA must be 4 bytes")
	}
	v := binary.BigEndian.Uint32(data)
	return &v, nil
}

func parseCHRM(data []byte) (*Chromaticity, error) {
	if len(data) != 32 {
		return nil, pngerr.New(pngerr.BadIHDR, "cHRM must be 32 bytes")
	}
	read := func(i int) uint32 { return binary.BigEndian.Uint32(data[i*4 : i*4+4]) }
	return &Chromaticity{
		WhiteX: read(0), WhiteY: read(1),
		RedX: read(2), RedY: read(3),
		GreenX: read(4), GreenY: read(5),
		BlueX: read(6), BlueY: read(7),
	}, nil
}

func parseSBIT(data []byte, ct ColorType) (*SBIT, error) {
	want := sample.Planes(ct)
	if len(data) != want {
		return nil, pngerr.New(pngerr.BadIHDR, "sBIT length must match channel count")
	}
	v := make([]uint8, len(data))
	copy(v, data)
	return &SBIT{Values: v}, nil
}

func parseBKGD(data []byte, ct ColorType) (*Background, error) {
	switch ct {
	case ColorPaletted:
		if len(data) != 1 {
			return nil, pngerr.New(pngerr.BadIHDR, "bKGD for palette must be 1 byte")
		}
		return &Background{PaletteIndex: data[0]}, nil
	case ColorGreyscale, ColorGreyscaleAlpha:
		if len(data) != 2 {
			return nil, pngerr.New(pngerr.BadIHDR, "bKGD for greyscale must be 2 bytes")
		}
		return &Background{Grey: binary.BigEndian.Uint16(data)}, nil
	case ColorTrueColor, ColorTrueColorAlpha:
		if len(data) != 6 {
			return nil, pngerr.New(pngerr.BadIHDR, "bKGD for truecolor must be 6 bytes")
		}
		return &Background{
			R: binary.BigEndian.Uint16(data[0:2]),
			G: binary.BigEndian.Uint16(data[2:4]),
			B: binary.BigEndian.Uint16(data[4:6]),
		}, nil
	}
	return nil, pngerr.New(pngerr.UnexpectedChunk, "bKGD: unknown colour type")
}

func parsePHYS(data []byte) (*Physical, error) {
	if len(data) != 9 {
		return nil, pngerr.New(pngerr.BadIHDR, "pHYs must be 9 bytes")
	}
	return &Physical{
		X:    binary.BigEndian.Uint32(data[0:4]),
		Y:    binary.BigEndian.Uint32(data[4:8]),
		Unit: data[8],
	}, nil
}

func parseTIME(data []byte) (*time.Time, error) {
	if len(data) != 7 {
		return nil, pngerr.New(pngerr.BadIHDR, "tIME must be 7 bytes")
	}
	year := int(binary.BigEndian.Uint16(data[0:2]))
	t := time.Date(year, time.Month(data[2]), int(data[3]), int(data[4]), int(data[5]), int(data[6]), 0, time.UTC)
	return &t, nil
}

func splitNulTerminated(data []byte, n int) ([][]byte, []byte, error) {
	parts := make([][]byte, 0, n)
	rest := data
	for i := 0; i < n; i++ {
		idx := bytes.IndexByte(rest, 0)
		if idx < 0 {
			return nil, nil, pngerr.New(pngerr.TruncatedData, "missing NUL separator")
		}
		parts = append(parts, rest[:idx])
		rest = rest[idx+1:]
	}
	return parts, rest, nil
}

func parseTEXT(data []byte) (TextEntry, error) {
	parts, rest, err := splitNulTerminated(data, 1)
	if err != nil {
		return TextEntry{}, err
	}
	return TextEntry{Keyword: string(parts[0]), Text: string(rest)}, nil
}

func parseZTXT(data []byte) (TextEntry, error) {
	parts, rest, err := splitNulTerminated(data, 1)
	if err != nil {
		return TextEntry{}, err
	}
	if len(rest) < 1 {
		return TextEntry{}, pngerr.New(pngerr.TruncatedData, "zTXt missing compression method")
	}
	if rest[0] != 0 {
		return TextEntry{}, pngerr.New(pngerr.DeflateError, "unsupported zTXt compression method")
	}
	text, err := inflateAll(rest[1:])
	if err != nil {
		return TextEntry{}, err
	}
	return TextEntry{Keyword: string(parts[0]), Text: string(text), Compressed: true}, nil
}

func parseITXT(data []byte) (TextEntry, error) {
	parts, rest, err := splitNulTerminated(data, 1)
	if err != nil {
		return TextEntry{}, err
	}
	if len(rest) < 2 {
		return TextEntry{}, pngerr.New(pngerr.TruncatedData, "iTXt missing flags")
	}
	compressed := rest[0] != 0
	method := rest[1]
	rest = rest[2:]
	more, rest, err := splitNulTerminated(rest, 2)
	if err != nil {
		return TextEntry{}, err
	}
	lang, translated := more[0], more[1]

	var text []byte
	if compressed {
		if method != 0 {
			return TextEntry{}, pngerr.New(pngerr.DeflateError, "unsupported iTXt compression method")
		}
		text, err = inflateAll(rest)
		if err != nil {
			return TextEntry{}, err
		}
	} else {
		text = rest
	}
	return TextEntry{
		Keyword:           string(parts[0]),
		Text:               string(text),
		Compressed:         compressed,
		International:      true,
		LanguageTag:        string(lang),
		TranslatedKeyword:  string(translated),
	}, nil
}

func parseICCP(data []byte) (*ICCProfile, error) {
	parts, rest, err := splitNulTerminated(data, 1)
	if err != nil {
		return nil, err
	}
	if len(rest) < 1 {
		return nil, pngerr.New(pngerr.TruncatedData, "iCCP missing compression method")
	}
	if rest[0] != 0 {
		return nil, pngerr.New(pngerr.DeflateError, "unsupported iCCP compression method")
	}
	profile, err := inflateAll(rest[1:])
	if err != nil {
		return nil, err
	}
	return &ICCProfile{Name: string(parts[0]), Profile: profile}, nil
}

func parseSRGB(data []byte) (*uint8, error) {
	if len(data) != 1 {
		return nil, pngerr.New(pngerr.BadIHDR, "sRGB must be 1 byte")
	}
	v := data[0]
	return &v, nil
}

func inflateAll(compressed []byte) ([]byte, error) {
	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, pngerr.Wrap(pngerr.DeflateError, "zlib header", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, pngerr.Wrap(pngerr.DeflateError, "zlib inflate", err)
	}
	return out, nil
}

// parseAncillary dispatches a chunk encountered outside IHDR/PLTE/IDAT/
// IEND to its typed field on info, or appends it to info.Unknown with the
// given bucket if this codec doesn't interpret it — matching §3's "unknown
// ancillary chunks preserved verbatim with their placement bucket".
func parseAncillary(t chunkpkg.Type, data []byte, info *Info, bucket chunkBucket) error {
	switch t.String() {
	case "tRNS":
		trns, err := parseTRNS(data, info.ColorType, len(info.Palette))
		if err != nil {
			return err
		}
		info.Transparency = trns
	case "gAMA":
		g, err := parseGAMA(data)
		if err != nil {
			return err
		}
		info.Gamma = g
	case "cHRM":
		c, err := parseCHRM(data)
		if err != nil {
			return err
		}
		info.Chroma = c
	case "sBIT":
		s, err := parseSBIT(data, info.ColorType)
		if err != nil {
			return err
		}
		info.SBIT = s
	case "bKGD":
		b, err := parseBKGD(data, info.ColorType)
		if err != nil {
			return err
		}
		info.Background = b
	case "pHYs":
		p, err := parsePHYS(data)
		if err != nil {
			return err
		}
		info.Phys = p
	case "tIME":
		tm, err := parseTIME(data)
		if err != nil {
			return err
		}
		info.Time = tm
	case "tEXt":
		te, err := parseTEXT(data)
		if err != nil {
			return err
		}
		info.Text = append(info.Text, te)
	case "zTXt":
		te, err := parseZTXT(data)
		if err != nil {
			return err
		}
		info.Text = append(info.Text, te)
	case "iTXt":
		te, err := parseITXT(data)
		if err != nil {
			return err
		}
		info.Text = append(info.Text, te)
	case "iCCP":
		icc, err := parseICCP(data)
		if err != nil {
			return err
		}
		info.ICCProfile = icc
	case "sRGB":
		intent, err := parseSRGB(data)
		if err != nil {
			return err
		}
		info.SRGBIntent = intent
	default:
		if !t.IsAncillary() {
			return pngerr.New(pngerr.UnexpectedChunk, "unknown critical chunk: "+t.String())
		}
		uc := UnknownChunk{Data: append([]byte(nil), data...), bucket: bucket}
		copy(uc.Type[:], t.String())
		info.Unknown = append(info.Unknown, uc)
	}
	return nil
}

// deflateAll zlib-compresses payload whole, for the short ancillary text
// and profile payloads that don't need internal/zdata's streaming/IDAT
// chunking — grounded on rmamba-image's pngCompress helper.
func deflateAll(payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(payload); err != nil {
		return nil, pngerr.Wrap(pngerr.DeflateError, "zlib deflate", err)
	}
	if err := zw.Close(); err != nil {
		return nil, pngerr.Wrap(pngerr.DeflateError, "zlib close", err)
	}
	return buf.Bytes(), nil
}

// encodeText builds the chunk payload and type for one TextEntry,
// picking tEXt, zTXt or iTXt per its Compressed/International flags,
// grounded on rmamba-image's maybeWriteZTXT/maybeWriteITXT.
func encodeText(te TextEntry) ([]byte, chunkpkg.Type, error) {
	if te.International {
		var buf bytes.Buffer
		buf.WriteString(te.Keyword)
		buf.WriteByte(0)
		if te.Compressed {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
		buf.WriteByte(0) // compression method
		buf.WriteString(te.LanguageTag)
		buf.WriteByte(0)
		buf.WriteString(te.TranslatedKeyword)
		buf.WriteByte(0)
		if te.Compressed {
			z, err := deflateAll([]byte(te.Text))
			if err != nil {
				return nil, chunkpkg.Type{}, err
			}
			buf.Write(z)
		} else {
			buf.WriteString(te.Text)
		}
		return buf.Bytes(), typeOf("iTXt"), nil
	}
	if te.Compressed {
		var buf bytes.Buffer
		buf.WriteString(te.Keyword)
		buf.WriteByte(0)
		buf.WriteByte(0) // compression method
		z, err := deflateAll([]byte(te.Text))
		if err != nil {
			return nil, chunkpkg.Type{}, err
		}
		buf.Write(z)
		return buf.Bytes(), typeOf("zTXt"), nil
	}
	var buf bytes.Buffer
	buf.WriteString(te.Keyword)
	buf.WriteByte(0)
	buf.WriteString(te.Text)
	return buf.Bytes(), typeOf("tEXt"), nil
}

// encodeICCP builds an iCCP chunk payload from a profile name and its
// raw (uncompressed) ICC bytes.
func encodeICCP(icc ICCProfile) ([]byte, error) {
	z, err := deflateAll(icc.Profile)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(icc.Name)
	buf.WriteByte(0)
	buf.WriteByte(0) // compression method
	buf.Write(z)
	return buf.Bytes(), nil
}
