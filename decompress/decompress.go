// Package decompress detects and unwraps gzip/zstd-compressed input
// streams by magic byte, per spec.md §6's "transparent decompression"
// input option. Built on github.com/klauspost/compress, already an
// indirect dependency of the teacher (pulled in via tview's terminal
// handling) and promoted here to a direct import.
package decompress

import (
	"bufio"
	"compress/gzip"
	"io"

	"github.com/klauspost/compress/zstd"
)

var (
	gzipMagic = []byte{0x1f, 0x8b, 0x08}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// Wrap peeks at the first few bytes of r and, if they match a known
// compression magic, returns a reader that transparently decompresses
// the stream. Otherwise it returns r unchanged (wrapped in a
// *bufio.Reader so the peek doesn't consume data callers still need).
func Wrap(r io.Reader) (io.Reader, error) {
	br := bufio.NewReaderSize(r, 32*1024)
	peek, err := br.Peek(4)
	if err != nil && err != io.EOF {
		return nil, err
	}

	switch {
	case hasPrefix(peek, gzipMagic):
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, err
		}
		return gz, nil
	case hasPrefix(peek, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return br, nil
	}
}

func hasPrefix(b, magic []byte) bool {
	if len(b) < len(magic) {
		return false
	}
	for i, m := range magic {
		if b[i] != m {
			return false
		}
	}
	return true
}
