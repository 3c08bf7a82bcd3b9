// Package filter implements component D: the five PNG scanline filters
// (None, Sub, Up, Average, Paeth), their inverse for decoding, and the
// forward filter-selection heuristic for encoding.
//
// The inverse filters generalize fumin-png's DecodeRow switch (which
// hardwires a 4-byte-per-pixel truecolor-alpha image) to an arbitrary
// filter unit fu, and are cross-checked against the PNG-predictor reader
// in other_examples/7ba5e149_seehuhn-go-pdf__internal-filter-predict-read.go.go,
// whose decodePNGRow implements the identical five-filter family (PDF's
// Predictor 10-15 reuses PNG's filter bytes verbatim).
package filter

import "github.com/pngcore/pngcodec/internal/pngerr"

// Type identifies one of the five PNG filter bytes.
type Type byte

const (
	None Type = iota
	Sub
	Up
	Average
	Paeth
	numFilters
)

// Unfilter reconstructs a scanline in place: cur holds the filtered bytes
// X on entry and the reconstructed bytes R on exit. prev is the previous
// scanline's already-reconstructed bytes (all zero for a pass's first
// scanline — callers pass a same-length zero slice). fu is the filter
// unit (bytes-per-pixel, minimum 1).
func Unfilter(ft Type, cur, prev []byte, fu int) error {
	switch ft {
	case None:
		return nil
	case Sub:
		for i := fu; i < len(cur); i++ {
			cur[i] += cur[i-fu]
		}
		return nil
	case Up:
		for i := range cur {
			cur[i] += prev[i]
		}
		return nil
	case Average:
		for i := 0; i < len(cur); i++ {
			var a byte
			if i >= fu {
				a = cur[i-fu]
			}
			cur[i] += byte((int(a) + int(prev[i])) / 2)
		}
		return nil
	case Paeth:
		for i := 0; i < len(cur); i++ {
			var a, c byte
			if i >= fu {
				a = cur[i-fu]
				c = prev[i-fu]
			}
			b := prev[i]
			cur[i] += paethPredictor(a, b, c)
		}
		return nil
	default:
		return pngerr.New(pngerr.UnknownFilter, "")
	}
}

// paethPredictor implements the exact tie-break order spec.md §4.D
// mandates: a wins ties with b and c, otherwise b wins its tie with c.
func paethPredictor(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// abs8 interprets a byte as a signed value in [-128, 127] and returns its
// absolute value, as the "minimum sum of absolute values" filter
// heuristic requires (spec.md §4.D). Grounded on rmamba-image's abs8.
func abs8(d byte) int {
	if d < 128 {
		return int(d)
	}
	return 256 - int(d)
}

// Candidates holds one scratch buffer per filter type, reused across
// scanlines by the writer so SelectBest never allocates on the hot path.
type Candidates struct {
	buf [numFilters][]byte
}

// NewCandidates preallocates scratch buffers sized for rows of n bytes.
func NewCandidates(n int) *Candidates {
	c := &Candidates{}
	for i := range c.buf {
		c.buf[i] = make([]byte, n)
	}
	return c
}

// SelectBest computes all five forward-filtered candidates for raw
// (the unfiltered scanline bytes) given prev (the previous scanline,
// all-zero for a pass's first row) and fu, and returns the filter type
// and its filtered bytes that minimize the sum-of-absolute-signed-
// deviations heuristic.
//
// Candidates are evaluated in the order Up, Paeth, None, Sub, Average —
// the order rmamba-image's filter function uses, attributed there to
// libpng's "most likely to win first" ordering — with strict "<"
// comparisons, so the first type to reach the minimum wins ties. Each
// candidate's sum accumulation exits as soon as it cannot beat the
// current best, which only ever discards a losing candidate's buffer: a
// candidate that goes on to win always finished its loop without
// breaking, so its buffer is always fully computed when selected.
func (c *Candidates) SelectBest(raw, prev []byte, fu int) (Type, []byte) {
	n := len(raw)
	for i := range c.buf {
		if cap(c.buf[i]) < n {
			c.buf[i] = make([]byte, n)
		} else {
			c.buf[i] = c.buf[i][:n]
		}
	}
	cNone, cSub, cUp, cAvg, cPaeth := c.buf[None], c.buf[Sub], c.buf[Up], c.buf[Average], c.buf[Paeth]

	// Up.
	sum := 0
	for i := 0; i < n; i++ {
		cUp[i] = raw[i] - prev[i]
		sum += abs8(cUp[i])
	}
	best := sum
	bestType := Up

	// Paeth.
	sum = 0
	for i := 0; i < fu; i++ {
		cPaeth[i] = raw[i] - prev[i]
		sum += abs8(cPaeth[i])
	}
	for i := fu; i < n; i++ {
		cPaeth[i] = raw[i] - paethPredictor(raw[i-fu], prev[i], prev[i-fu])
		sum += abs8(cPaeth[i])
		if sum >= best {
			break
		}
	}
	if sum < best {
		best = sum
		bestType = Paeth
	}

	// None.
	sum = 0
	for i := 0; i < n; i++ {
		sum += abs8(raw[i])
		if sum >= best {
			break
		}
	}
	if sum < best {
		best = sum
		bestType = None
		copy(cNone, raw)
	}

	// Sub.
	sum = 0
	for i := 0; i < fu; i++ {
		cSub[i] = raw[i]
		sum += abs8(cSub[i])
	}
	for i := fu; i < n; i++ {
		cSub[i] = raw[i] - raw[i-fu]
		sum += abs8(cSub[i])
		if sum >= best {
			break
		}
	}
	if sum < best {
		best = sum
		bestType = Sub
	}

	// Average.
	sum = 0
	for i := 0; i < fu; i++ {
		cAvg[i] = raw[i] - prev[i]/2
		sum += abs8(cAvg[i])
	}
	for i := fu; i < n; i++ {
		cAvg[i] = raw[i] - byte((int(raw[i-fu])+int(prev[i]))/2)
		sum += abs8(cAvg[i])
		if sum >= best {
			break
		}
	}
	if sum < best {
		bestType = Average
	}

	switch bestType {
	case None:
		return None, cNone
	case Sub:
		return Sub, cSub
	case Up:
		return Up, cUp
	case Average:
		return Average, cAvg
	case Paeth:
		return Paeth, cPaeth
	}
	return None, raw
}

// Forward applies one specific filter type to raw given prev and fu,
// writing into out (which must be len(raw) bytes). Used when the writer
// is configured with a fixed filter type instead of the adaptive
// heuristic.
func Forward(ft Type, raw, prev []byte, fu int, out []byte) error {
	switch ft {
	case None:
		copy(out, raw)
		return nil
	case Sub:
		for i := 0; i < fu; i++ {
			out[i] = raw[i]
		}
		for i := fu; i < len(raw); i++ {
			out[i] = raw[i] - raw[i-fu]
		}
		return nil
	case Up:
		for i := range raw {
			out[i] = raw[i] - prev[i]
		}
		return nil
	case Average:
		for i := 0; i < fu; i++ {
			out[i] = raw[i] - prev[i]/2
		}
		for i := fu; i < len(raw); i++ {
			out[i] = raw[i] - byte((int(raw[i-fu])+int(prev[i]))/2)
		}
		return nil
	case Paeth:
		for i := 0; i < fu; i++ {
			out[i] = raw[i] - paethPredictor(0, prev[i], 0)
		}
		for i := fu; i < len(raw); i++ {
			out[i] = raw[i] - paethPredictor(raw[i-fu], prev[i], prev[i-fu])
		}
		return nil
	default:
		return pngerr.New(pngerr.UnknownFilter, "")
	}
}
