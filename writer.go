package png

import (
	"encoding/binary"
	"io"

	chunkpkg "github.com/pngcore/pngcodec/internal/chunk"
	"github.com/pngcore/pngcodec/internal/filter"
	"github.com/pngcore/pngcodec/internal/interlace"
	"github.com/pngcore/pngcodec/internal/pngbits"
	"github.com/pngcore/pngcodec/internal/pngerr"
	"github.com/pngcore/pngcodec/internal/sample"
	"github.com/pngcore/pngcodec/internal/zdata"
)

// RowSource pulls one direct (unpacked, one-sample-per-element) row at a
// time; it returns io.EOF once exhausted. This is the pull-driven row
// iterator spec.md §5 describes — the caller paces production, mirroring
// internal/zdata's IDATSource pull callback one layer up.
type RowSource func() ([]int, error)

// PackedRowSource is RowSource's packed-bytes counterpart, for callers
// that already have scanlines packed at the target bit depth.
type PackedRowSource func() ([]byte, error)

// FilterPolicy selects how the Writer chooses a scanline's filter type.
type FilterPolicy struct {
	adaptive bool
	fixed    filter.Type
}

// AdaptiveFilter selects, per scanline, the filter minimizing the sum of
// absolute signed deviations (spec.md §4.D's default heuristic).
func AdaptiveFilter() FilterPolicy { return FilterPolicy{adaptive: true} }

// FixedFilter forces every scanline to use the same filter type.
func FixedFilter(t filter.Type) FilterPolicy { return FilterPolicy{fixed: t} }

// WriterOption configures a Writer at construction time.
type WriterOption func(*Writer) error

func WithGreyscale(alpha bool) WriterOption {
	return func(w *Writer) error {
		if alpha {
			w.colorType = ColorGreyscaleAlpha
		} else {
			w.colorType = ColorGreyscale
		}
		return nil
	}
}

func WithTrueColor(alpha bool) WriterOption {
	return func(w *Writer) error {
		if alpha {
			w.colorType = ColorTrueColorAlpha
		} else {
			w.colorType = ColorTrueColor
		}
		return nil
	}
}

func WithPalette(pal sample.Palette) WriterOption {
	return func(w *Writer) error {
		if len(pal) == 0 || len(pal) > 256 {
			return pngerr.New(pngerr.BadConfig, "palette must have 1-256 entries")
		}
		w.colorType = ColorPaletted
		w.palette = pal
		return nil
	}
}

func WithBitDepth(d uint8) WriterOption {
	return func(w *Writer) error { w.bitDepth = d; return nil }
}

func WithTransparency(t *sample.Transparency) WriterOption {
	return func(w *Writer) error { w.transparency = t; return nil }
}

func WithBackground(b *Background) WriterOption {
	return func(w *Writer) error { w.background = b; return nil }
}

func WithInterlace(enabled bool) WriterOption {
	return func(w *Writer) error {
		if enabled {
			w.interlace = InterlaceAdam7
		} else {
			w.interlace = InterlaceNone
		}
		return nil
	}
}

func WithCompressionLevel(level int) WriterOption {
	return func(w *Writer) error { w.compressionLevel = level; return nil }
}

func WithFilterPolicy(p FilterPolicy) WriterOption {
	return func(w *Writer) error { w.filterPolicy = p; return nil }
}

func WithMaxIDATSize(n int) WriterOption {
	return func(w *Writer) error {
		if n < 1 {
			return pngerr.New(pngerr.BadConfig, "max IDAT size must be >= 1")
		}
		w.maxIDATSize = n
		return nil
	}
}

func WithGamma(g uint32) WriterOption {
	return func(w *Writer) error { w.gamma = &g; return nil }
}

func WithChroma(c Chromaticity) WriterOption {
	return func(w *Writer) error { w.chroma = &c; return nil }
}

func WithSBIT(s SBIT) WriterOption {
	return func(w *Writer) error { w.sbit = &s; return nil }
}

func WithPhys(p Physical) WriterOption {
	return func(w *Writer) error { w.phys = &p; return nil }
}

func WithText(entries ...TextEntry) WriterOption {
	return func(w *Writer) error { w.text = append(w.text, entries...); return nil }
}

func WithUnknownChunk(typ [4]byte, data []byte, afterIDAT bool) WriterOption {
	return func(w *Writer) error {
		b := bucketBeforeIDAT
		if afterIDAT {
			b = bucketAfterIDAT
		}
		w.unknown = append(w.unknown, UnknownChunk{Type: typ, Data: data, bucket: b})
		return nil
	}
}

func WithICCProfile(p ICCProfile) WriterOption {
	return func(w *Writer) error { w.iccProfile = &p; return nil }
}

func WithSRGBIntent(intent uint8) WriterOption {
	return func(w *Writer) error { w.srgbIntent = &intent; return nil }
}

// Writer encodes rows into a complete PNG byte stream. It owns its
// output handle for the duration of encoding (spec.md §3).
type Writer struct {
	width, height    int
	colorType        ColorType
	bitDepth         uint8
	palette          sample.Palette
	transparency     *sample.Transparency
	background       *Background
	interlace        InterlaceMethod
	compressionLevel int
	filterPolicy     FilterPolicy
	maxIDATSize      int

	gamma      *uint32
	chroma     *Chromaticity
	sbit       *SBIT
	phys       *Physical
	text       []TextEntry
	unknown    []UnknownChunk
	iccProfile *ICCProfile
	srgbIntent *uint8
}

// NewWriter validates width, height and opts and returns a ready Writer.
// Defaults: 8-bit RGB (no alpha), non-interlaced, default zlib
// compression, adaptive filtering, 8 KiB IDAT chunks.
func NewWriter(width, height int, opts ...WriterOption) (*Writer, error) {
	if width < 1 || height < 1 {
		return nil, pngerr.New(pngerr.BadConfig, "width and height must be >= 1")
	}
	w := &Writer{
		width: width, height: height,
		colorType:        ColorTrueColor,
		bitDepth:         8,
		compressionLevel: -1, // zlib.DefaultCompression
		filterPolicy:     AdaptiveFilter(),
		maxIDATSize:      8192,
	}
	for _, opt := range opts {
		if err := opt(w); err != nil {
			return nil, err
		}
	}
	if err := w.validate(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) validate() error {
	if !sample.ValidBitDepth(w.colorType, w.bitDepth) {
		return pngerr.New(pngerr.BadConfig, "invalid bit depth for colour type")
	}
	if w.colorType == ColorPaletted && len(w.palette) == 0 {
		return pngerr.New(pngerr.BadConfig, "palette colour type without palette data")
	}
	if w.iccProfile != nil && w.srgbIntent != nil {
		return pngerr.New(pngerr.BadConfig, "at most one of iCCP/sRGB may be set")
	}
	return nil
}

func (w *Writer) planes() int { return sample.Planes(w.colorType) }
func (w *Writer) fu() int     { return pngbits.BytesPerPixel(w.planes(), int(w.bitDepth)) }

// writeHeader emits the signature, IHDR, and every pre-PLTE/pre-IDAT
// ancillary chunk, in the order spec.md §4.H mandates: IHDR,
// gAMA/cHRM/sRGB/iCCP, sBIT, PLTE, bKGD, tRNS, pHYs, textual chunks.
func (w *Writer) writeHeader(cw *chunkpkg.Writer) error {
	if err := cw.WriteSignature(); err != nil {
		return err
	}

	var ihdr [13]byte
	binary.BigEndian.PutUint32(ihdr[0:4], uint32(w.width))
	binary.BigEndian.PutUint32(ihdr[4:8], uint32(w.height))
	ihdr[8] = w.bitDepth
	ihdr[9] = byte(w.colorType)
	ihdr[10] = 0
	ihdr[11] = 0
	ihdr[12] = byte(w.interlace)
	if err := cw.WriteChunk(chunkpkg.TypeIHDR, ihdr[:]); err != nil {
		return err
	}

	if w.gamma != nil {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], *w.gamma)
		if err := cw.WriteChunk(typeOf("gAMA"), b[:]); err != nil {
			return err
		}
	}
	if w.chroma != nil {
		var b [32]byte
		put := func(i int, v uint32) { binary.BigEndian.PutUint32(b[i*4:i*4+4], v) }
		put(0, w.chroma.WhiteX)
		put(1, w.chroma.WhiteY)
		put(2, w.chroma.RedX)
		put(3, w.chroma.RedY)
		put(4, w.chroma.GreenX)
		put(5, w.chroma.GreenY)
		put(6, w.chroma.BlueX)
		put(7, w.chroma.BlueY)
		if err := cw.WriteChunk(typeOf("cHRM"), b[:]); err != nil {
			return err
		}
	}
	if w.srgbIntent != nil {
		if err := cw.WriteChunk(typeOf("sRGB"), []byte{*w.srgbIntent}); err != nil {
			return err
		}
	}
	if w.iccProfile != nil {
		data, err := encodeICCP(*w.iccProfile)
		if err != nil {
			return err
		}
		if err := cw.WriteChunk(typeOf("iCCP"), data); err != nil {
			return err
		}
	}
	if w.sbit != nil {
		if err := cw.WriteChunk(typeOf("sBIT"), w.sbit.Values); err != nil {
			return err
		}
	}
	if err := w.writeUnknownBucket(cw, bucketBeforePLTE); err != nil {
		return err
	}

	if w.colorType == ColorPaletted {
		data := make([]byte, len(w.palette)*3)
		for i, e := range w.palette {
			data[i*3], data[i*3+1], data[i*3+2] = e.R, e.G, e.B
		}
		if err := cw.WriteChunk(chunkpkg.TypePLTE, data); err != nil {
			return err
		}
	}
	if w.background != nil {
		if err := w.writeBKGD(cw); err != nil {
			return err
		}
	}
	if err := w.writeTRNS(cw); err != nil {
		return err
	}
	if w.phys != nil {
		var b [9]byte
		binary.BigEndian.PutUint32(b[0:4], w.phys.X)
		binary.BigEndian.PutUint32(b[4:8], w.phys.Y)
		b[8] = w.phys.Unit
		if err := cw.WriteChunk(typeOf("pHYs"), b[:]); err != nil {
			return err
		}
	}
	if err := w.writeUnknownBucket(cw, bucketBeforeIDAT); err != nil {
		return err
	}
	for _, te := range w.text {
		data, typ, err := encodeText(te)
		if err != nil {
			return err
		}
		if err := cw.WriteChunk(typ, data); err != nil {
			return err
		}
	}
	return cw.Err()
}

func (w *Writer) writeBKGD(cw *chunkpkg.Writer) error {
	b := w.background
	var data []byte
	switch w.colorType {
	case ColorPaletted:
		data = []byte{b.PaletteIndex}
	case ColorGreyscale, ColorGreyscaleAlpha:
		data = make([]byte, 2)
		binary.BigEndian.PutUint16(data, b.Grey)
	case ColorTrueColor, ColorTrueColorAlpha:
		data = make([]byte, 6)
		binary.BigEndian.PutUint16(data[0:2], b.R)
		binary.BigEndian.PutUint16(data[2:4], b.G)
		binary.BigEndian.PutUint16(data[4:6], b.B)
	}
	return cw.WriteChunk(typeOf("bKGD"), data)
}

// writeTRNS emits tRNS when an explicit transparency was configured, or
// (for palette images) synthesizes one whenever any palette entry has
// alpha < 255 — per spec.md §4.F's "writes tRNS if any palette entry has
// alpha <255".
func (w *Writer) writeTRNS(cw *chunkpkg.Writer) error {
	if w.transparency != nil {
		switch w.colorType {
		case ColorPaletted:
			return cw.WriteChunk(typeOf("tRNS"), w.transparency.PaletteAlpha)
		case ColorGreyscale:
			var b [2]byte
			binary.BigEndian.PutUint16(b[:], *w.transparency.GreyKey)
			return cw.WriteChunk(typeOf("tRNS"), b[:])
		case ColorTrueColor:
			var b [6]byte
			k := w.transparency.RGBKey
			binary.BigEndian.PutUint16(b[0:2], k[0])
			binary.BigEndian.PutUint16(b[2:4], k[1])
			binary.BigEndian.PutUint16(b[4:6], k[2])
			return cw.WriteChunk(typeOf("tRNS"), b[:])
		default:
			return pngerr.New(pngerr.BadConfig, "tRNS not valid alongside a real alpha channel")
		}
	}
	if w.colorType == ColorPaletted {
		needed := 0
		for i, e := range w.palette {
			if e.A != 255 {
				needed = i + 1
			}
		}
		if needed == 0 {
			return nil
		}
		data := make([]byte, needed)
		for i := 0; i < needed; i++ {
			data[i] = w.palette[i].A
		}
		return cw.WriteChunk(typeOf("tRNS"), data)
	}
	return nil
}

func (w *Writer) writeUnknownBucket(cw *chunkpkg.Writer, bucket chunkBucket) error {
	for _, uc := range w.unknown {
		if uc.bucket != bucket {
			continue
		}
		if err := cw.WriteChunk(chunkpkg.Type(uc.Type), uc.Data); err != nil {
			return err
		}
	}
	return nil
}

func typeOf(s string) chunkpkg.Type {
	var t chunkpkg.Type
	copy(t[:], s)
	return t
}

// newFilteredRowWriter returns a closure that filters one already-packed
// row (given the previous packed row) and writes filter-byte+bytes into
// zw, reusing a single Candidates scratch set across the whole image.
func (w *Writer) newFilteredRowWriter(zw io.Writer, rowBytes int) func(packed []byte) error {
	fu := w.fu()
	prev := make([]byte, rowBytes)
	cand := filter.NewCandidates(rowBytes)
	out := make([]byte, rowBytes)
	return func(packed []byte) error {
		var ft filter.Type
		var filtered []byte
		if w.filterPolicy.adaptive {
			ft, filtered = cand.SelectBest(packed, prev, fu)
		} else {
			ft = w.filterPolicy.fixed
			if err := filter.Forward(ft, packed, prev, fu, out); err != nil {
				return err
			}
			filtered = out
		}
		if _, err := zw.Write([]byte{byte(ft)}); err != nil {
			return pngerr.Wrap(pngerr.DeflateError, "writing filter byte", err)
		}
		if _, err := zw.Write(filtered); err != nil {
			return pngerr.Wrap(pngerr.DeflateError, "writing scanline", err)
		}
		copy(prev, packed)
		return nil
	}
}

// Write consumes rows (exactly Height direct rows of Width*planes
// samples) and emits a complete, non-interlaced PNG to out.
func (w *Writer) Write(out io.Writer, rows RowSource) error {
	if w.interlace != InterlaceNone {
		return pngerr.New(pngerr.BadConfig, "Write requires InterlaceNone; use WritePasses")
	}
	return w.WritePacked(out, func() ([]byte, error) {
		row, err := rows()
		if err != nil {
			return nil, err
		}
		if len(row) != w.width*w.planes() {
			return nil, pngerr.New(pngerr.RowLengthMismatch, "")
		}
		if err := checkSampleRange(row, w.bitDepth); err != nil {
			return nil, err
		}
		return sample.Pack(row, int(w.bitDepth)), nil
	})
}

// WritePacked is Write's packed-row counterpart: rows must already be
// packed at the configured bit depth.
func (w *Writer) WritePacked(out io.Writer, rows PackedRowSource) error {
	cw := chunkpkg.NewWriter(out)
	if err := w.writeHeader(cw); err != nil {
		return err
	}

	rowBytes := pngbits.RowBytes(w.width, w.planes(), int(w.bitDepth))
	var sinkErr error
	sink := func(data []byte) error {
		if err := cw.WriteChunk(chunkpkg.TypeIDAT, data); err != nil {
			sinkErr = err
			return err
		}
		return nil
	}
	zw, finish, err := zdata.NewCompressor(w.compressionLevel, sink, w.maxIDATSize)
	if err != nil {
		return err
	}
	writeRow := w.newFilteredRowWriter(zw, rowBytes)

	for i := 0; i < w.height; i++ {
		row, err := rows()
		if err != nil {
			return pngerr.Wrap(pngerr.RowLengthMismatch, "row source", err)
		}
		if len(row) != rowBytes {
			return pngerr.New(pngerr.RowLengthMismatch, "")
		}
		if err := writeRow(row); err != nil {
			return err
		}
	}
	if err := finish(); err != nil {
		return err
	}
	if sinkErr != nil {
		return sinkErr
	}

	if err := w.writeUnknownBucket(cw, bucketAfterIDAT); err != nil {
		return err
	}
	if err := cw.WriteChunk(chunkpkg.TypeIEND, nil); err != nil {
		return err
	}
	return cw.Err()
}

// WritePasses is the Adam7 variant: passRows[p] supplies the pass-local
// rows (pass width * planes samples each) for pass p, in the same order
// internal/interlace.Passes defines.
func (w *Writer) WritePasses(out io.Writer, passRows [7]RowSource) error {
	if w.interlace != InterlaceAdam7 {
		return pngerr.New(pngerr.BadConfig, "WritePasses requires InterlaceAdam7")
	}
	cw := chunkpkg.NewWriter(out)
	if err := w.writeHeader(cw); err != nil {
		return err
	}

	var sinkErr error
	sink := func(data []byte) error {
		if err := cw.WriteChunk(chunkpkg.TypeIDAT, data); err != nil {
			sinkErr = err
			return err
		}
		return nil
	}
	zw, finish, err := zdata.NewCompressor(w.compressionLevel, sink, w.maxIDATSize)
	if err != nil {
		return err
	}

	planes := w.planes()
	for pass := 0; pass < 7; pass++ {
		pw, ph := interlace.PassDims(w.width, w.height, pass)
		if pw == 0 || ph == 0 {
			continue
		}
		rowBytes := pngbits.RowBytes(pw, planes, int(w.bitDepth))
		writeRow := w.newFilteredRowWriter(zw, rowBytes)
		for j := 0; j < ph; j++ {
			row, err := passRows[pass]()
			if err != nil {
				return pngerr.Wrap(pngerr.RowLengthMismatch, "pass row source", err)
			}
			if len(row) != pw*planes {
				return pngerr.New(pngerr.RowLengthMismatch, "")
			}
			if err := checkSampleRange(row, w.bitDepth); err != nil {
				return err
			}
			if err := writeRow(sample.Pack(row, int(w.bitDepth))); err != nil {
				return err
			}
		}
	}
	if err := finish(); err != nil {
		return err
	}
	if sinkErr != nil {
		return sinkErr
	}

	if err := w.writeUnknownBucket(cw, bucketAfterIDAT); err != nil {
		return err
	}
	if err := cw.WriteChunk(chunkpkg.TypeIEND, nil); err != nil {
		return err
	}
	return cw.Err()
}

// PassRowsFromGrid splits a full-image direct-row grid into the seven
// per-pass RowSource values WritePasses expects, using internal/interlace
// for the pixel scatter math.
func PassRowsFromGrid(width, height, planes int, rows [][]int) [7]RowSource {
	g := interlace.NewGrid(width, height, planes)
	copy(g.Rows, rows)
	var out [7]RowSource
	for pass := 0; pass < 7; pass++ {
		pass := pass
		next := 0
		out[pass] = func() ([]int, error) {
			_, ph := interlace.PassDims(width, height, pass)
			if next >= ph {
				return nil, io.EOF
			}
			row := g.GatherPassRow(pass, next)
			next++
			return row, nil
		}
	}
	return out
}

func checkSampleRange(row []int, bitDepth uint8) error {
	max := (1 << uint(bitDepth)) - 1
	for _, v := range row {
		if v < 0 || v > max {
			return pngerr.New(pngerr.SampleOutOfRange, "")
		}
	}
	return nil
}
