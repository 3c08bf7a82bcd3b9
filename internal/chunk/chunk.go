// Package chunk implements the length-prefixed, type-tagged, CRC-validated
// container PNG wraps its chunks in (component B of the codec). It knows
// nothing about what the chunk data means — that is the job of the png
// package's façades — only how to frame and validate it.
//
// The read side generalizes the teacher's eager "slurp every chunk into a
// slice, then search it" approach (simple-png's ParsePng/ParseChunk) into
// a one-chunk-at-a-time stream: Next returns a single chunk per call so a
// caller can start decompressing IDAT data before the rest of the file
// has even been read, which the streaming contract in spec.md §5 requires.
package chunk

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"

	"github.com/pngcore/pngcodec/internal/pngerr"
)

// Signature is the 8-byte magic every PNG stream begins with.
var Signature = [8]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// Type is a 4-ASCII-byte chunk type code, e.g. "IHDR".
type Type [4]byte

func (t Type) String() string { return string(t[:]) }

// IsAncillary reports whether bit 5 of the first byte is set: the chunk
// can be ignored if the reader does not understand it.
func (t Type) IsAncillary() bool { return t[0]&0x20 != 0 }

// IsPrivate reports whether this chunk type is privately defined, rather
// than part of the public PNG specification.
func (t Type) IsPrivate() bool { return t[1]&0x20 != 0 }

// IsReservedBitValid reports whether the type byte respects the reserved
// bit PNG requires to be zero (bit 5 of the third byte).
func (t Type) IsReservedBitValid() bool { return t[2]&0x20 == 0 }

// IsSafeToCopy reports whether editors that don't understand this chunk
// may copy it through unmodified.
func (t Type) IsSafeToCopy() bool { return t[3]&0x20 != 0 }

func typeOf(s string) Type {
	var t Type
	copy(t[:], s)
	return t
}

var (
	TypeIHDR = typeOf("IHDR")
	TypePLTE = typeOf("PLTE")
	TypeIDAT = typeOf("IDAT")
	TypeIEND = typeOf("IEND")
)

// Chunk is one framed chunk: its type and its data payload (length is
// implicit in len(Data); the CRC is validated, not retained).
type Chunk struct {
	Type Type
	Data []byte
}

// Reader reads chunks from a PNG byte stream, validating CRCs and chunk
// ordering as it goes. It mirrors png.go's readChunk/ParsePng loop, but
// pulls one chunk at a time and enforces the ordering rules that
// ostafen-digler's decoder.parseChunk state machine encodes (IHDR first,
// PLTE before any IDAT, IDAT chunks contiguous, IEND exactly once, last).
type Reader struct {
	r        io.Reader
	lenient  bool
	Warnings []error

	sawIHDR    bool
	sawPLTE    bool
	sawIDAT    bool
	inIDATRun  bool
	sawIEND    bool
	sigChecked bool
}

// NewReader wraps r. When lenient is true, BadCRC failures are recorded
// in Warnings instead of aborting the stream (spec.md §7, §8 scenario S4).
func NewReader(r io.Reader, lenient bool) *Reader {
	return &Reader{r: r, lenient: lenient}
}

// ReadSignature consumes and validates the 8-byte PNG magic. It must be
// called exactly once, before the first call to Next.
func (cr *Reader) ReadSignature() error {
	var buf [8]byte
	if _, err := io.ReadFull(cr.r, buf[:]); err != nil {
		return pngerr.Wrap(pngerr.MalformedSignature, "reading signature", err)
	}
	if buf != Signature {
		return pngerr.New(pngerr.MalformedSignature, "bad PNG magic")
	}
	cr.sigChecked = true
	return nil
}

// Next reads and validates the next chunk, enforcing PNG chunk-ordering
// rules. It returns io.EOF only after IEND has been consumed.
func (cr *Reader) Next() (Chunk, error) {
	if cr.sawIEND {
		return Chunk{}, io.EOF
	}
	if !cr.sigChecked {
		return Chunk{}, pngerr.New(pngerr.MalformedSignature, "ReadSignature not called")
	}

	var lenBuf [4]byte
	if _, err := io.ReadFull(cr.r, lenBuf[:]); err != nil {
		if err == io.EOF && cr.sawIEND {
			return Chunk{}, io.EOF
		}
		return Chunk{}, pngerr.Wrap(pngerr.TruncatedChunk, "reading length", err)
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length > 0x7fffffff {
		return Chunk{}, pngerr.New(pngerr.TruncatedChunk, "chunk length too large")
	}

	var typeBuf Type
	if _, err := io.ReadFull(cr.r, typeBuf[:]); err != nil {
		return Chunk{}, pngerr.Wrap(pngerr.TruncatedChunk, "reading type", err)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(cr.r, data); err != nil {
		return Chunk{}, pngerr.Wrap(pngerr.TruncatedChunk, "reading data", err)
	}

	var crcBuf [4]byte
	if _, err := io.ReadFull(cr.r, crcBuf[:]); err != nil {
		return Chunk{}, pngerr.Wrap(pngerr.TruncatedChunk, "reading crc", err)
	}
	want := binary.BigEndian.Uint32(crcBuf[:])
	h := crc32.NewIEEE()
	h.Write(typeBuf[:])
	h.Write(data)
	if got := h.Sum32(); got != want {
		crcErr := pngerr.New(pngerr.BadCRC, typeBuf.String())
		if !cr.lenient {
			return Chunk{}, crcErr
		}
		cr.Warnings = append(cr.Warnings, crcErr)
	}

	if err := cr.trackOrder(typeBuf); err != nil {
		return Chunk{}, err
	}

	return Chunk{Type: typeBuf, Data: data}, nil
}

func (cr *Reader) trackOrder(t Type) error {
	switch t {
	case TypeIHDR:
		if cr.sawIHDR {
			return pngerr.New(pngerr.DuplicateChunk, "IHDR")
		}
		cr.sawIHDR = true
	case TypePLTE:
		if !cr.sawIHDR {
			return pngerr.New(pngerr.MissingIHDR, "PLTE before IHDR")
		}
		if cr.sawPLTE {
			return pngerr.New(pngerr.DuplicateChunk, "PLTE")
		}
		if cr.sawIDAT {
			return pngerr.New(pngerr.UnexpectedChunk, "PLTE after IDAT")
		}
		cr.sawPLTE = true
	case TypeIDAT:
		if !cr.sawIHDR {
			return pngerr.New(pngerr.MissingIHDR, "IDAT before IHDR")
		}
		if cr.sawIDAT && !cr.inIDATRun {
			return pngerr.New(pngerr.UnexpectedChunk, "IDAT chunks not contiguous")
		}
		cr.sawIDAT = true
		cr.inIDATRun = true
	case TypeIEND:
		if !cr.sawIHDR {
			return pngerr.New(pngerr.MissingIHDR, "IEND before IHDR")
		}
		cr.sawIEND = true
		cr.inIDATRun = false
	default:
		if cr.inIDATRun {
			cr.inIDATRun = false
		}
		if !cr.sawIHDR {
			return pngerr.New(pngerr.MissingIHDR, t.String()+" before IHDR")
		}
	}
	return nil
}

// Finish must be called once Next has returned io.EOF. It reports
// MissingIEND if the stream ended before an IEND chunk was seen.
func (cr *Reader) Finish() error {
	if !cr.sawIEND {
		return pngerr.New(pngerr.MissingIEND, "")
	}
	return nil
}

// Writer frames and emits chunks onto an underlying stream: signature,
// then length + type + data + CRC per chunk, mirroring writeChunk in the
// teacher's png.go but as a standalone component usable by any façade
// code rather than a method embedded in the encoder.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer { return &Writer{w: w} }

// WriteSignature emits the 8-byte PNG magic. Must be called exactly once,
// before the first WriteChunk.
func (cw *Writer) WriteSignature() error {
	if cw.err != nil {
		return cw.err
	}
	_, err := cw.w.Write(Signature[:])
	if err != nil {
		cw.err = errors.WithStack(err)
	}
	return cw.err
}

// WriteChunk frames and writes one chunk: 4-byte big-endian length, 4-byte
// type, data, 4-byte CRC over type‖data.
func (cw *Writer) WriteChunk(t Type, data []byte) error {
	if cw.err != nil {
		return cw.err
	}
	if len(data) > 0x7fffffff {
		cw.err = pngerr.New(pngerr.TruncatedChunk, "chunk too large to encode")
		return cw.err
	}

	var header [8]byte
	binary.BigEndian.PutUint32(header[:4], uint32(len(data)))
	copy(header[4:8], t[:])

	h := crc32.NewIEEE()
	h.Write(t[:])
	h.Write(data)
	var footer [4]byte
	binary.BigEndian.PutUint32(footer[:], h.Sum32())

	if _, err := cw.w.Write(header[:]); err != nil {
		cw.err = errors.WithStack(err)
		return cw.err
	}
	if len(data) > 0 {
		if _, err := cw.w.Write(data); err != nil {
			cw.err = errors.WithStack(err)
			return cw.err
		}
	}
	if _, err := cw.w.Write(footer[:]); err != nil {
		cw.err = errors.WithStack(err)
	}
	return cw.err
}

// Err returns the first error encountered by any Write* call.
func (cw *Writer) Err() error { return cw.err }
