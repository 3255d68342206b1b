package stream

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/taskgraph/mrworker"
)

const defaultBufferSize = 64 * 1024

type lineIterator struct {
	r   *bufio.Reader
	eof bool
}

// LineReader turns a byte stream into one record per line. Keys are nil, the
// value is the line without its trailing newline. A final line with no
// newline is still returned.
func LineReader(bufSize int) Stage {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		r, ok := fd.(io.Reader)
		if !ok {
			return nil, size, url, fmt.Errorf("line reader needs an io.Reader, got %T", fd)
		}
		return &lineIterator{r: bufio.NewReaderSize(r, bufSize)}, size, url, nil
	})
}

func (it *lineIterator) Next() (mrworker.Record, error) {
	if it.eof {
		return mrworker.Record{}, io.EOF
	}
	str, err := it.r.ReadString('\n')
	if err == io.EOF {
		it.eof = true
		if str == "" {
			return mrworker.Record{}, io.EOF
		}
		return mrworker.Record{Value: str}, nil
	}
	if err != nil {
		return mrworker.Record{}, err
	}
	str = strings.TrimSuffix(str[:len(str)-1], "\r")
	return mrworker.Record{Value: str}, nil
}
