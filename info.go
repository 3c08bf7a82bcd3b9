package png

import (
	"time"

	"github.com/pngcore/pngcodec/internal/pngbits"
	"github.com/pngcore/pngcodec/internal/pngerr"
	"github.com/pngcore/pngcodec/internal/sample"
)

// ColorType is the IHDR colour-type byte. It is an alias of the sample
// package's type so internal/sample, internal/filter and the façades all
// agree on one representation without an import cycle (sample cannot
// import this package; this package freely imports sample).
type ColorType = sample.ColorType

const (
	ColorGreyscale      = sample.Greyscale
	ColorTrueColor      = sample.TrueColor
	ColorPaletted       = sample.Paletted
	ColorGreyscaleAlpha = sample.GreyscaleAlpha
	ColorTrueColorAlpha = sample.TrueColorAlpha
)

// InterlaceMethod is the IHDR interlace-method byte.
type InterlaceMethod uint8

const (
	InterlaceNone  InterlaceMethod = 0
	InterlaceAdam7 InterlaceMethod = 1
)

// Chromaticity holds the cHRM chunk's eight fixed-point (x100000) values.
type Chromaticity struct {
	WhiteX, WhiteY uint32
	RedX, RedY     uint32
	GreenX, GreenY uint32
	BlueX, BlueY   uint32
}

// SBIT records the sBIT chunk: the number of significant bits actually
// used per channel, one to four values depending on colour type.
type SBIT struct {
	Values []uint8
}

// Background records the bKGD chunk. Exactly one of the fields is
// meaningful, chosen by the image's colour type.
type Background struct {
	PaletteIndex uint8
	Grey         uint16
	R, G, B      uint16
}

// Physical records the pHYs chunk: pixel density and its unit (0 =
// unknown/aspect ratio only, 1 = metres).
type Physical struct {
	X, Y uint32
	Unit uint8
}

// TextEntry is one tEXt/zTXt/iTXt record. Compressed and International
// select which of the three chunk types round-trips this entry.
type TextEntry struct {
	Keyword           string
	Text              string
	Compressed        bool
	International     bool
	LanguageTag       string
	TranslatedKeyword string
}

// ICCProfile records the iCCP chunk, fidelity-only (no colour management
// is performed on it).
type ICCProfile struct {
	Name    string
	Profile []byte
}

// chunkBucket records where an unrecognised ancillary chunk sat relative
// to PLTE/IDAT, so a round-trip re-emits it in the same place.
type chunkBucket int

const (
	bucketBeforePLTE chunkBucket = iota
	bucketBeforeIDAT
	bucketAfterIDAT
)

// UnknownChunk preserves a chunk this codec doesn't interpret, verbatim.
type UnknownChunk struct {
	Type   [4]byte
	Data   []byte
	bucket chunkBucket
}

// Info is the image descriptor: the fixed facts established by IHDR plus
// whatever ancillary state the stream (or the caller, on encode) carries.
// A Reader's IHDR fields do not change once its preamble has completed;
// ancillary chunks that follow the IDAT run are added to its Info when
// the Reader reaches the end of the image data.
type Info struct {
	Width, Height int
	BitDepth      uint8
	ColorType     ColorType
	Interlace     InterlaceMethod

	Palette      sample.Palette
	Transparency *sample.Transparency

	Gamma      *uint32
	Chroma     *Chromaticity
	SBIT       *SBIT
	Background *Background
	Phys       *Physical
	Text       []TextEntry
	Time       *time.Time
	ICCProfile *ICCProfile
	SRGBIntent *uint8
	Unknown    []UnknownChunk
}

// Planes returns the channel count implied by ColorType: a pure function
// of colour type, as spec.md §3 requires.
func (info *Info) Planes() int {
	return sample.Planes(info.ColorType)
}

// BytesPerPixel returns the filter unit fu = max(1, ceil(planes*bitDepth/8)).
func (info *Info) BytesPerPixel() int {
	return pngbits.BytesPerPixel(info.Planes(), int(info.BitDepth))
}

// RowBytes returns the number of packed bytes one full-width scanline of
// this descriptor occupies (excluding the filter-type byte).
func (info *Info) RowBytes() int {
	return pngbits.RowBytes(info.Width, info.Planes(), int(info.BitDepth))
}

// validate checks the combination of fields IHDR establishes, mirroring
// the invariants spec.md §3 states (bit depth 16 forbidden with palette,
// bit depths below 8 allowed only with greyscale or palette).
func (info *Info) validate() error {
	if info.Width < 1 || info.Height < 1 {
		return pngerr.New(pngerr.BadIHDR, "width and height must be >= 1")
	}
	if !sample.ValidBitDepth(info.ColorType, info.BitDepth) {
		return pngerr.New(pngerr.BadIHDR, "invalid bit depth for colour type")
	}
	if info.Interlace != InterlaceNone && info.Interlace != InterlaceAdam7 {
		return pngerr.New(pngerr.BadIHDR, "invalid interlace method")
	}
	return nil
}
