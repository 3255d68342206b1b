package stream

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/taskgraph/mrworker"
)

// emitKV is the on-disk shape of a record in the intermediate format: one
// JSON object per line.
type emitKV struct {
	Key   interface{} `json:"key"`
	Value interface{} `json:"value"`
}

type recordIterator struct {
	r   *bufio.Reader
	url string
}

// RecordReader decodes the intermediate format written by RecordWriter.
// Numbers come back as json.Number.
func RecordReader(bufSize int) Stage {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		r, ok := fd.(io.Reader)
		if !ok {
			return nil, size, url, fmt.Errorf("record reader needs an io.Reader, got %T", fd)
		}
		return &recordIterator{r: bufio.NewReaderSize(r, bufSize), url: url}, size, url, nil
	})
}

func (it *recordIterator) Next() (mrworker.Record, error) {
	for {
		line, err := it.r.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return mrworker.Record{}, err
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			if err == io.EOF {
				return mrworker.Record{}, io.EOF
			}
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(line))
		dec.UseNumber()
		var kv emitKV
		if derr := dec.Decode(&kv); derr != nil {
			return mrworker.Record{}, fmt.Errorf("record reader: bad record in %s: %w", it.url, derr)
		}
		return mrworker.Record{Key: kv.Key, Value: kv.Value}, nil
	}
}

type recordWriter struct {
	w *bufio.Writer
}

// RecordWriter serializes records in the intermediate format. Closing it
// flushes the buffer; the layer below is closed by the chain.
func RecordWriter(bufSize int) Stage {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		w, ok := fd.(io.Writer)
		if !ok {
			return nil, size, url, fmt.Errorf("record writer needs an io.Writer, got %T", fd)
		}
		return &recordWriter{w: bufio.NewWriterSize(w, bufSize)}, size, url, nil
	})
}

func (rw *recordWriter) Add(key, value interface{}) error {
	data, err := json.Marshal(emitKV{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("record writer: json marshal: %w", err)
	}
	data = append(data, '\n')
	_, err = rw.w.Write(data)
	return err
}

func (rw *recordWriter) Close() error {
	return rw.w.Flush()
}
