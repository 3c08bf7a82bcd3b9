// Package pngerr defines the codec's closed error taxonomy so every layer
// — chunk framing, compression, filtering, sampling, and the façades —
// reports failures through the same typed Kind instead of ad hoc strings.
package pngerr

import "fmt"

// Kind identifies which invariant a Error violates. The set is closed and
// mirrors the taxonomy a decoder/encoder needs to report precisely: the
// caller can switch on Kind without string-matching a message.
type Kind int

const (
	_ Kind = iota

	// Format errors: the byte stream does not describe a valid PNG.
	MalformedSignature
	UnexpectedChunk
	DuplicateChunk
	MissingIHDR
	MissingIEND
	UnknownFilter
	BadIHDR

	// Integrity errors: the stream is shaped like a PNG but a checksum
	// or length disagrees with its contents.
	BadCRC
	ChecksumMismatch
	TruncatedChunk
	TruncatedData

	// Compression errors: the DEFLATE/zlib codec boundary failed.
	DeflateError

	// Semantic errors: well-formed but violates a PNG or caller contract.
	PaletteRequired
	PaletteOutOfRange
	BadConfig
	SampleOutOfRange
	RowLengthMismatch
	UnsupportedDepth

	// Conversion errors: an as*-style value-preserving coercion can't be
	// satisfied without loss.
	LossyConversionRefused
)

func (k Kind) String() string {
	switch k {
	case MalformedSignature:
		return "MalformedSignature"
	case UnexpectedChunk:
		return "UnexpectedChunk"
	case DuplicateChunk:
		return "DuplicateChunk"
	case MissingIHDR:
		return "MissingIHDR"
	case MissingIEND:
		return "MissingIEND"
	case UnknownFilter:
		return "UnknownFilter"
	case BadIHDR:
		return "BadIHDR"
	case BadCRC:
		return "BadCRC"
	case ChecksumMismatch:
		return "ChecksumMismatch"
	case TruncatedChunk:
		return "TruncatedChunk"
	case TruncatedData:
		return "TruncatedData"
	case DeflateError:
		return "DeflateError"
	case PaletteRequired:
		return "PaletteRequired"
	case PaletteOutOfRange:
		return "PaletteOutOfRange"
	case BadConfig:
		return "BadConfig"
	case SampleOutOfRange:
		return "SampleOutOfRange"
	case RowLengthMismatch:
		return "RowLengthMismatch"
	case UnsupportedDepth:
		return "UnsupportedDepth"
	case LossyConversionRefused:
		return "LossyConversionRefused"
	default:
		return "Unknown"
	}
}

// Error is the codec's single error type: a Kind plus a human-readable
// detail and an optional wrapped cause (an underlying io/zlib error, for
// instance).
type Error struct {
	Kind   Kind
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("png: %s: %s: %v", e.Kind, e.Detail, e.Cause)
	}
	if e.Detail == "" {
		return fmt.Sprintf("png: %s", e.Kind)
	}
	return fmt.Sprintf("png: %s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a Error with no wrapped cause.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap builds a Error that carries cause as its wrapped error.
func Wrap(kind Kind, detail string, cause error) *Error {
	return &Error{Kind: kind, Detail: detail, Cause: cause}
}

// Is reports whether err is a *Error of the given Kind, unwrapping as
// needed. It lets callers write pngerr.Is(err, pngerr.BadCRC) instead of
// a type assertion followed by a field comparison.
func Is(err error, kind Kind) bool {
	for err != nil {
		if pe, ok := err.(*Error); ok {
			return pe.Kind == kind
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
