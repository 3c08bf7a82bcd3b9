package png

import "github.com/pngcore/pngcodec/internal/pngerr"

// Kind identifies which invariant an Error violates. See pngerr.Kind for
// the full taxonomy; it is aliased here so callers never need to import
// an internal package to switch on it.
type Kind = pngerr.Kind

const (
	MalformedSignature = pngerr.MalformedSignature
	UnexpectedChunk     = pngerr.UnexpectedChunk
	DuplicateChunk      = pngerr.DuplicateChunk
	MissingIHDR         = pngerr.MissingIHDR
	MissingIEND         = pngerr.MissingIEND
	UnknownFilter       = pngerr.UnknownFilter
	BadIHDR             = pngerr.BadIHDR

	BadCRC           = pngerr.BadCRC
	ChecksumMismatch = pngerr.ChecksumMismatch
	TruncatedChunk   = pngerr.TruncatedChunk
	TruncatedData    = pngerr.TruncatedData

	DeflateError = pngerr.DeflateError

	PaletteRequired   = pngerr.PaletteRequired
	PaletteOutOfRange = pngerr.PaletteOutOfRange
	BadConfig         = pngerr.BadConfig
	SampleOutOfRange  = pngerr.SampleOutOfRange
	RowLengthMismatch = pngerr.RowLengthMismatch
	UnsupportedDepth  = pngerr.UnsupportedDepth

	LossyConversionRefused = pngerr.LossyConversionRefused
)

// Error is the codec's error type: decoding, validation and codec
// failures are returned as one, or wrap one (see errors.As). An I/O
// failure while writing to the output stream is not: it is returned as
// the underlying write error with a stack trace attached.
type Error = pngerr.Error

// IsKind reports whether err is (or wraps) an *Error of the given Kind.
func IsKind(err error, kind Kind) bool {
	return pngerr.Is(err, kind)
}
