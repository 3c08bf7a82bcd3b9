package interlace

import "testing"

// TestTilingPartitionsGrid checks spec.md §8 invariant 5: the multiset
// union of pass pixel coordinates equals the full grid exactly once.
func TestTilingPartitionsGrid(t *testing.T) {
	const w, h = 9, 9
	seen := make(map[[2]int]int)
	for pass := 0; pass < 7; pass++ {
		pw, ph := PassDims(w, h, pass)
		p := Passes[pass]
		for j := 0; j < ph; j++ {
			y := p.YOffset + j*p.YStride
			for i := 0; i < pw; i++ {
				x := p.XOffset + i*p.XStride
				seen[[2]int{x, y}]++
			}
		}
	}
	if len(seen) != w*h {
		t.Fatalf("covered %d coordinates, want %d", len(seen), w*h)
	}
	for coord, count := range seen {
		if count != 1 {
			t.Fatalf("coordinate %v covered %d times, want exactly 1", coord, count)
		}
	}
}

func TestPassDimsZeroForTinyImages(t *testing.T) {
	// A 1x1 image only has data in pass 1 (xo=0,yo=0); every other pass
	// must report zero width or height.
	pw, ph := PassDims(1, 1, 0)
	if pw != 1 || ph != 1 {
		t.Fatalf("pass 0 of 1x1 image: got %dx%d, want 1x1", pw, ph)
	}
	for pass := 1; pass < 7; pass++ {
		pw, ph := PassDims(1, 1, pass)
		if pw != 0 && ph != 0 {
			t.Fatalf("pass %d of 1x1 image should contribute nothing, got %dx%d", pass, pw, ph)
		}
	}
}

func TestScatterGatherRoundTrip(t *testing.T) {
	const w, h, planes = 9, 9, 3
	src := NewGrid(w, h, planes)
	val := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w*planes; x++ {
			src.Rows[y][x] = val % 256
			val++
		}
	}

	dst := NewGrid(w, h, planes)
	for pass := 0; pass < 7; pass++ {
		_, ph := PassDims(w, h, pass)
		for j := 0; j < ph; j++ {
			row := src.GatherPassRow(pass, j)
			dst.ScatterPassRow(pass, j, row)
		}
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w*planes; x++ {
			if src.Rows[y][x] != dst.Rows[y][x] {
				t.Fatalf("mismatch at row %d col %d: got %d want %d", y, x, dst.Rows[y][x], src.Rows[y][x])
			}
		}
	}
}
