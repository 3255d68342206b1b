package stream

import (
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/taskgraph/mrworker"
)

// Gunzip decompresses its input. The decompressed length is unknown, and a
// trailing ".gz" is dropped from the url so later stages see the inner name.
func Gunzip() Stage {
	return StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		r, ok := fd.(io.Reader)
		if !ok {
			return nil, size, url, fmt.Errorf("gunzip needs an io.Reader, got %T", fd)
		}
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, size, url, err
		}
		return zr, mrworker.SizeUnknown, strings.TrimSuffix(url, ".gz"), nil
	})
}

// Gzip compresses everything written above it. The gzip trailer is written
// when the chain closes this layer, before the raw handle is closed.
func Gzip() Stage {
	return StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		w, ok := fd.(io.Writer)
		if !ok {
			return nil, size, url, fmt.Errorf("gzip needs an io.Writer, got %T", fd)
		}
		return gzip.NewWriter(w), size, url, nil
	})
}
