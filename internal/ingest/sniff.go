package ingest

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// Encoding is a detected or declared content encoding.
type Encoding int

const (
	EncodingNone Encoding = iota
	EncodingGzip
	EncodingDeflate
	EncodingBrotli
	EncodingZstd
)

var (
	gzipMagic  = []byte{0x1f, 0x8b}
	zstdMagic  = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// SniffEncoding inspects the first few bytes of r (via a buffered peek, so
// no bytes are consumed) to determine the actual encoding, falling back to
// the declared Content-Encoding header when magic-byte sniffing is
// inconclusive (brotli and raw deflate have no reliable magic number).
func SniffEncoding(r *bufio.Reader, declared string) (Encoding, error) {
	peek, err := r.Peek(4)
	if err != nil && err != io.EOF {
		return EncodingNone, err
	}

	if len(peek) >= 2 && peek[0] == gzipMagic[0] && peek[1] == gzipMagic[1] {
		return EncodingGzip, nil
	}
	if len(peek) >= 4 && peek[0] == zstdMagic[0] && peek[1] == zstdMagic[1] &&
		peek[2] == zstdMagic[2] && peek[3] == zstdMagic[3] {
		return EncodingZstd, nil
	}

	switch declared {
	case "br":
		return EncodingBrotli, nil
	case "deflate":
		return EncodingDeflate, nil
	case "gzip":
		return EncodingGzip, nil
	case "zstd":
		return EncodingZstd, nil
	}
	return EncodingNone, nil
}

// DecodeReader wraps r in the appropriate decompressor for enc. Callers
// must Close the returned io.ReadCloser; for EncodingNone it wraps r
// without buffering.
func DecodeReader(r io.Reader, enc Encoding) (io.ReadCloser, error) {
	switch enc {
	case EncodingGzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, err
		}
		return gz, nil
	case EncodingDeflate:
		return flate.NewReader(r), nil
	case EncodingBrotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	case EncodingZstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zr.IOReadCloser(), nil
	default:
		return io.NopCloser(r), nil
	}
}
