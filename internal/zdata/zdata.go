// Package zdata implements component C of the codec: presenting the
// concatenation of every IDAT chunk's data as one continuous byte stream
// for a streaming zlib/DEFLATE decoder to consume, and the mirror image
// on encode — cutting a zlib writer's output into IDAT-sized chunks.
//
// compress/zlib is the DEFLATE black box spec.md §4.C calls out; every
// PNG implementation in the retrieval pack (rmamba-image, fumin-png) uses
// it the same way, so this package does too rather than reimplementing
// DEFLATE.
package zdata

import (
	"compress/zlib"
	"io"

	"github.com/pngcore/pngcodec/internal/pngerr"
)

// IDATSource supplies the data of successive IDAT chunks. It returns
// io.EOF once the contiguous run of IDAT chunks has been exhausted; the
// caller (the reader façade) is the one that knows when that run ends,
// since only it is tracking chunk types.
type IDATSource func() ([]byte, error)

// concatReader presents a sequence of IDAT payloads, pulled lazily from
// an IDATSource, as one continuous io.Reader — mirroring the teacher's
// underlying decoder.Read (fumin-png/reader.go), generalized away from a
// single hardwired chunk-length field into a pull callback so the chunk
// layer stays in charge of chunk-boundary bookkeeping.
type concatReader struct {
	pull IDATSource
	cur  []byte
}

func (c *concatReader) Read(p []byte) (int, error) {
	for len(c.cur) == 0 {
		b, err := c.pull()
		if err != nil {
			return 0, err
		}
		c.cur = b
		// A zero-length IDAT chunk is legal (if wasteful); skip it and
		// pull the next one rather than reporting a false EOF.
	}
	n := copy(p, c.cur)
	c.cur = c.cur[n:]
	return n, nil
}

// NewDecompressor wraps the concatenation of IDAT chunks (pulled from
// src) in a zlib reader, ready to be consumed scanline-by-scanline by the
// filter/interlace layers. The returned ReadCloser tolerates scanline
// boundaries that don't align with DEFLATE block boundaries, since zlib's
// reader already buffers internally.
func NewDecompressor(src IDATSource) (io.ReadCloser, error) {
	zr, err := zlib.NewReader(&concatReader{pull: src})
	if err != nil {
		return nil, translateZlibErr(err)
	}
	return &decompressor{zr: zr}, nil
}

type decompressor struct{ zr io.ReadCloser }

func (d *decompressor) Read(p []byte) (int, error) {
	n, err := d.zr.Read(p)
	if err != nil && err != io.EOF {
		err = translateZlibErr(err)
	}
	return n, err
}

func (d *decompressor) Close() error {
	if err := d.zr.Close(); err != nil {
		return translateZlibErr(err)
	}
	return nil
}

func translateZlibErr(err error) error {
	if err == zlib.ErrChecksum {
		return pngerr.Wrap(pngerr.ChecksumMismatch, "zlib adler-32", err)
	}
	if err == zlib.ErrHeader || err == zlib.ErrDictionary {
		return pngerr.Wrap(pngerr.DeflateError, "zlib stream", err)
	}
	if err == io.ErrUnexpectedEOF {
		return pngerr.Wrap(pngerr.TruncatedData, "stream ended early", err)
	}
	return pngerr.Wrap(pngerr.DeflateError, "zlib stream", err)
}

// ChunkSink receives one IDAT chunk's worth of compressed bytes at a
// time. The chunk layer (not this package) is responsible for actually
// framing and CRC-ing it.
type ChunkSink func(data []byte) error

// chunkingWriter buffers zlib output and flushes it to sink in pieces no
// larger than maxSize, mirroring rmamba-image's bufio.Writer staged in
// front of its IDAT-emitting encoder.Write.
type chunkingWriter struct {
	sink    ChunkSink
	maxSize int
	buf     []byte
}

// NewChunkingWriter returns an io.Writer that accumulates bytes and
// flushes them to sink in chunks of at most maxSize bytes. maxSize < 1 is
// treated as 1.
func NewChunkingWriter(maxSize int, sink ChunkSink) io.Writer {
	if maxSize < 1 {
		maxSize = 1
	}
	return &chunkingWriter{sink: sink, maxSize: maxSize}
}

func (c *chunkingWriter) Write(p []byte) (int, error) {
	total := len(p)
	c.buf = append(c.buf, p...)
	for len(c.buf) >= c.maxSize {
		if err := c.sink(c.buf[:c.maxSize]); err != nil {
			return 0, err
		}
		c.buf = c.buf[c.maxSize:]
	}
	return total, nil
}

// Flush emits any remaining buffered bytes as one final (possibly short)
// chunk. Call it once after the zlib writer has been closed.
func (c *chunkingWriter) Flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	err := c.sink(c.buf)
	c.buf = nil
	return err
}

// NewCompressor returns a zlib writer over a chunkingWriter sink with the
// given compression level, plus a Finish function that must be called
// exactly once to flush the zlib trailer and any buffered bytes.
func NewCompressor(level int, sink ChunkSink, maxChunkSize int) (w io.Writer, finish func() error, err error) {
	cw := &chunkingWriter{sink: sink, maxSize: maxOrDefault(maxChunkSize)}
	zw, zerr := zlib.NewWriterLevel(cw, level)
	if zerr != nil {
		return nil, nil, pngerr.Wrap(pngerr.DeflateError, "zlib writer init", zerr)
	}
	return zw, func() error {
		if err := zw.Close(); err != nil {
			return pngerr.Wrap(pngerr.DeflateError, "zlib close", err)
		}
		return cw.Flush()
	}, nil
}

func maxOrDefault(n int) int {
	if n < 1 {
		return 8192
	}
	return n
}
