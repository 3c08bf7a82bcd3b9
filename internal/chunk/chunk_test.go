package chunk

import (
	"bytes"
	"testing"

	"github.com/pngcore/pngcodec/internal/pngerr"
)

func writeTestStream(t *testing.T, chunks []Chunk) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := NewWriter(&buf)
	if err := w.WriteSignature(); err != nil {
		t.Fatalf("WriteSignature: %v", err)
	}
	for _, c := range chunks {
		if err := w.WriteChunk(c.Type, c.Data); err != nil {
			t.Fatalf("WriteChunk(%s): %v", c.Type, err)
		}
	}
	return buf.Bytes()
}

func TestRoundTripChunks(t *testing.T) {
	chunks := []Chunk{
		{Type: TypeIHDR, Data: make([]byte, 13)},
		{Type: TypeIDAT, Data: []byte("abc")},
		{Type: TypeIEND, Data: nil},
	}
	raw := writeTestStream(t, chunks)

	r := NewReader(bytes.NewReader(raw), false)
	if err := r.ReadSignature(); err != nil {
		t.Fatalf("ReadSignature: %v", err)
	}
	var got []Chunk
	for {
		c, err := r.Next()
		if err != nil {
			break
		}
		got = append(got, c)
	}
	if err := r.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(got) != len(chunks) {
		t.Fatalf("got %d chunks, want %d", len(got), len(chunks))
	}
	for i := range chunks {
		if got[i].Type != chunks[i].Type {
			t.Errorf("chunk %d: type = %s, want %s", i, got[i].Type, chunks[i].Type)
		}
		if !bytes.Equal(got[i].Data, chunks[i].Data) {
			t.Errorf("chunk %d: data mismatch", i)
		}
	}
}

func TestBadSignature(t *testing.T) {
	r := NewReader(bytes.NewReader([]byte("not a png")), false)
	err := r.ReadSignature()
	if !pngerr.Is(err, pngerr.MalformedSignature) {
		t.Fatalf("expected MalformedSignature, got %v", err)
	}
}

func TestMissingIHDRFirst(t *testing.T) {
	raw := writeTestStream(t, []Chunk{
		{Type: TypeIDAT, Data: []byte("x")},
	})
	r := NewReader(bytes.NewReader(raw), false)
	if err := r.ReadSignature(); err != nil {
		t.Fatal(err)
	}
	_, err := r.Next()
	if !pngerr.Is(err, pngerr.MissingIHDR) {
		t.Fatalf("expected MissingIHDR, got %v", err)
	}
}

func TestMissingIEND(t *testing.T) {
	raw := writeTestStream(t, []Chunk{
		{Type: TypeIHDR, Data: make([]byte, 13)},
	})
	r := NewReader(bytes.NewReader(raw), false)
	if err := r.ReadSignature(); err != nil {
		t.Fatal(err)
	}
	for {
		_, err := r.Next()
		if err != nil {
			break
		}
	}
	if err := r.Finish(); !pngerr.Is(err, pngerr.MissingIEND) {
		t.Fatalf("expected MissingIEND, got %v", err)
	}
}

func TestIDATNotContiguous(t *testing.T) {
	raw := writeTestStream(t, []Chunk{
		{Type: TypeIHDR, Data: make([]byte, 13)},
		{Type: TypeIDAT, Data: []byte("a")},
		{Type: typeOf("tEXt"), Data: []byte("k\x00v")},
		{Type: TypeIDAT, Data: []byte("b")},
		{Type: TypeIEND, Data: nil},
	})
	r := NewReader(bytes.NewReader(raw), false)
	if err := r.ReadSignature(); err != nil {
		t.Fatal(err)
	}
	var lastErr error
	for {
		_, err := r.Next()
		if err != nil {
			lastErr = err
			break
		}
	}
	if !pngerr.Is(lastErr, pngerr.UnexpectedChunk) {
		t.Fatalf("expected UnexpectedChunk, got %v", lastErr)
	}
}

func TestBadCRCStrictVsLenient(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	w.WriteSignature()
	w.WriteChunk(TypeIHDR, make([]byte, 13))
	raw := buf.Bytes()
	// Flip every bit of the first IHDR CRC byte (the CRC is the last 4 bytes of that chunk).
	crcOffset := len(Signature) + 4 + 4 + 13
	raw[crcOffset] ^= 0xFF

	strict := NewReader(bytes.NewReader(raw), false)
	strict.ReadSignature()
	_, err := strict.Next()
	if !pngerr.Is(err, pngerr.BadCRC) {
		t.Fatalf("strict: expected BadCRC, got %v", err)
	}

	lenient := NewReader(bytes.NewReader(raw), true)
	lenient.ReadSignature()
	_, err = lenient.Next()
	if err != nil {
		t.Fatalf("lenient: unexpected error %v", err)
	}
	if len(lenient.Warnings) != 1 {
		t.Fatalf("lenient: expected 1 warning, got %d", len(lenient.Warnings))
	}
}

func TestChunkTypeClassification(t *testing.T) {
	if TypeIDAT.IsSafeToCopy() {
		// IDAT's 4th byte is 'T' = 0x54, bit 0x20 is not set -> not safe to copy.
		t.Errorf("IDAT should not be safe to copy")
	}
	ancillary := typeOf("tEXt")
	if !ancillary.IsAncillary() {
		t.Errorf("tEXt should be ancillary")
	}
	if TypeIHDR.IsAncillary() {
		t.Errorf("IHDR should be critical")
	}
}
