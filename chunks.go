package png

import (
	"io"
	"iter"

	chunkpkg "github.com/pngcore/pngcodec/internal/chunk"
)

// Chunks is the low-level chunk iterator spec.md §4.G calls out: it
// yields every chunk of r verbatim (signature validated, CRC checked,
// ordering enforced) without interpreting any of them. It is a separate
// traversal of the stream from Reader's pixel decoding — use one or the
// other on a given io.Reader, not both.
func Chunks(r io.Reader) iter.Seq2[chunkpkg.Chunk, error] {
	return func(yield func(chunkpkg.Chunk, error) bool) {
		cr := chunkpkg.NewReader(r, false)
		if err := cr.ReadSignature(); err != nil {
			yield(chunkpkg.Chunk{}, err)
			return
		}
		for {
			c, err := cr.Next()
			if err == io.EOF {
				if err := cr.Finish(); err != nil {
					yield(chunkpkg.Chunk{}, err)
				}
				return
			}
			if err != nil {
				yield(chunkpkg.Chunk{}, err)
				return
			}
			if !yield(c, nil) {
				return
			}
		}
	}
}
