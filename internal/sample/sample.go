// Package sample implements component F: conversion between the bytes a
// PNG stores and the row formats callers see — packed, direct (one
// sample per element), and coerced (rescale to 8/16-bit RGB/RGBA).
//
// Packing/unpacking delegates to internal/pngbits; this package adds the
// plane-aware and colour-type-aware layer on top, grounded on rmamba-image's
// inline per-colour-type row assembly (writeImage's switch over cbG8,
// cbTC8, cbP8, cbP4/cbP2/cbP1, cbTCA8, cbG16, cbTC16, cbTCA16) generalized
// from "one case arm per concrete combination, inlined into the writer"
// into small, independently testable functions shared by both façades.
package sample

import (
	"github.com/pngcore/pngcodec/internal/pngbits"
	"github.com/pngcore/pngcodec/internal/pngerr"
)

// ColorType is the PNG IHDR colour-type byte.
type ColorType uint8

const (
	Greyscale      ColorType = 0
	TrueColor      ColorType = 2
	Paletted       ColorType = 3
	GreyscaleAlpha ColorType = 4
	TrueColorAlpha ColorType = 6
)

// Planes returns the channel count for a colour type: 1 (grey/palette),
// 2 (grey+alpha), 3 (RGB), 4 (RGBA).
func Planes(ct ColorType) int {
	switch ct {
	case Greyscale, Paletted:
		return 1
	case GreyscaleAlpha:
		return 2
	case TrueColor:
		return 3
	case TrueColorAlpha:
		return 4
	}
	return 0
}

// ValidBitDepth reports whether bitDepth is legal for ct, per the IHDR
// table in spec.md §6: 16 is forbidden with palette; bit depths below 8
// are allowed only with greyscale or palette.
func ValidBitDepth(ct ColorType, bitDepth uint8) bool {
	switch bitDepth {
	case 1, 2, 4:
		return ct == Greyscale || ct == Paletted
	case 8:
		return true
	case 16:
		return ct != Paletted
	}
	return false
}

// PaletteEntry is one RGBA palette slot (alpha defaults to 255 unless a
// tRNS chunk overrides it).
type PaletteEntry struct{ R, G, B, A uint8 }

// Palette is an ordered list of 1-256 entries; index i in a pixel row
// refers to entry i.
type Palette []PaletteEntry

// Transparency records the tRNS chunk's payload for whichever colour type
// it applies to (mutually exclusive fields).
type Transparency struct {
	PaletteAlpha []uint8   // color type 3: per-palette-index alpha
	GreyKey      *uint16   // color type 0: single transparent grey level
	RGBKey       *[3]uint16 // color type 2: single transparent RGB triple
}

// Rescale maps a sample from a `from`-bit range to a `to`-bit range such
// that 0 maps to 0 and 2^from-1 maps to 2^to-1 (spec.md §4.F, §8
// invariant 7). Using integer truncation (not rounding) keeps the
// mapping monotone (§8 invariant 8) and keeps rescale(rescale(v, d, D), D, d)
// well-behaved at the endpoints.
func Rescale(v, from, to int) int {
	if from == to {
		return v
	}
	maxFrom := (1 << uint(from)) - 1
	maxTo := (1 << uint(to)) - 1
	return v * maxTo / maxFrom
}

// Unpack reads width*planes samples of bitDepth bits each from a packed
// scanline (no filter byte).
func Unpack(packed []byte, width, planes, bitDepth int) []int {
	return pngbits.UnpackSamples(packed, bitDepth, width*planes)
}

// Pack is the inverse of Unpack.
func Pack(samples []int, bitDepth int) []byte {
	return pngbits.PackSamples(samples, bitDepth)
}

// CoerceOptions controls an asRGB8/asRGBA8/asRGB16/asRGBA16-style
// conversion.
type CoerceOptions struct {
	TargetDepth int // 8 or 16
	WithAlpha   bool
	Palette     Palette
	Trns        *Transparency
}

// Coerce converts one direct (unpacked) row of width pixels, stored at
// (ct, bitDepth), into an RGB or RGBA row at opts.TargetDepth. Palette
// images are expanded through opts.Palette; tRNS synthesises alpha when
// the colour type itself carries none. This is the `as*` family from
// spec.md §4.F/§4.G — it only rescales and replicates, so it always
// succeeds for valid input. Rescaling up (or to the same depth) is exact;
// rescaling a 16-bit source to an 8-bit target truncates, so that case
// loses the low-order bits.
func Coerce(row []int, width int, ct ColorType, bitDepth int, opts CoerceOptions) ([]int, error) {
	inPlanes := Planes(ct)
	if len(row) != width*inPlanes {
		return nil, pngerr.New(pngerr.RowLengthMismatch, "coerce input row")
	}
	if ct == Paletted && len(opts.Palette) == 0 {
		return nil, pngerr.New(pngerr.PaletteRequired, "coerce palette image without palette")
	}

	outPlanes := 3
	if opts.WithAlpha {
		outPlanes = 4
	}
	out := make([]int, 0, width*outPlanes)
	maxStored := (1 << uint(bitDepth)) - 1

	for x := 0; x < width; x++ {
		px := row[x*inPlanes : x*inPlanes+inPlanes]
		var r, g, b, a int
		var rBits, gBits, bBits, aBits int
		switch ct {
		case Paletted:
			idx := px[0]
			if idx < 0 || idx >= len(opts.Palette) {
				return nil, pngerr.New(pngerr.PaletteOutOfRange, "")
			}
			e := opts.Palette[idx]
			r, g, b, a = int(e.R), int(e.G), int(e.B), int(e.A)
			rBits, gBits, bBits, aBits = 8, 8, 8, 8
			if opts.Trns != nil && int(idx) < len(opts.Trns.PaletteAlpha) {
				a = int(opts.Trns.PaletteAlpha[idx])
			}
		case Greyscale:
			r, g, b = px[0], px[0], px[0]
			rBits, gBits, bBits = bitDepth, bitDepth, bitDepth
			a = maxStored
			aBits = bitDepth
			if opts.Trns != nil && opts.Trns.GreyKey != nil && px[0] == int(*opts.Trns.GreyKey) {
				a = 0
			}
		case GreyscaleAlpha:
			r, g, b = px[0], px[0], px[0]
			rBits, gBits, bBits = bitDepth, bitDepth, bitDepth
			a, aBits = px[1], bitDepth
		case TrueColor:
			r, g, b = px[0], px[1], px[2]
			rBits, gBits, bBits = bitDepth, bitDepth, bitDepth
			a = maxStored
			aBits = bitDepth
			if opts.Trns != nil && opts.Trns.RGBKey != nil {
				k := opts.Trns.RGBKey
				if px[0] == int(k[0]) && px[1] == int(k[1]) && px[2] == int(k[2]) {
					a = 0
				}
			}
		case TrueColorAlpha:
			r, g, b, a = px[0], px[1], px[2], px[3]
			rBits, gBits, bBits, aBits = bitDepth, bitDepth, bitDepth, bitDepth
		default:
			return nil, pngerr.New(pngerr.UnsupportedDepth, "unknown colour type")
		}

		out = append(out, Rescale(r, rBits, opts.TargetDepth), Rescale(g, gBits, opts.TargetDepth), Rescale(b, bBits, opts.TargetDepth))
		if opts.WithAlpha {
			out = append(out, Rescale(a, aBits, opts.TargetDepth))
		}
	}
	return out, nil
}
