package stream

import (
	"bufio"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protodelim"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/taskgraph/mrworker"
)

// Proto records are length-delimited structpb.ListValue messages holding
// exactly two elements, key and value. Only values structpb can represent
// are accepted: nil, bools, numbers, strings, []interface{} and
// map[string]interface{}. Numbers decode as float64.

type protoIterator struct {
	r   *bufio.Reader
	url string
}

func ProtoRecordReader(bufSize int) Stage {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		r, ok := fd.(io.Reader)
		if !ok {
			return nil, size, url, fmt.Errorf("proto record reader needs an io.Reader, got %T", fd)
		}
		return &protoIterator{r: bufio.NewReaderSize(r, bufSize), url: url}, size, url, nil
	})
}

func (it *protoIterator) Next() (mrworker.Record, error) {
	msg := &structpb.ListValue{}
	if err := protodelim.UnmarshalFrom(it.r, msg); err != nil {
		if err == io.EOF {
			return mrworker.Record{}, io.EOF
		}
		return mrworker.Record{}, fmt.Errorf("proto record reader: %s: %w", it.url, err)
	}
	if len(msg.Values) != 2 {
		return mrworker.Record{}, fmt.Errorf("proto record reader: %s: record has %d fields, want 2", it.url, len(msg.Values))
	}
	return mrworker.Record{Key: msg.Values[0].AsInterface(), Value: msg.Values[1].AsInterface()}, nil
}

type protoWriter struct {
	w *bufio.Writer
}

func ProtoRecordWriter(bufSize int) Stage {
	if bufSize <= 0 {
		bufSize = defaultBufferSize
	}
	return StageFunc(func(fd Handle, size int64, url string) (Handle, int64, string, error) {
		w, ok := fd.(io.Writer)
		if !ok {
			return nil, size, url, fmt.Errorf("proto record writer needs an io.Writer, got %T", fd)
		}
		return &protoWriter{w: bufio.NewWriterSize(w, bufSize)}, size, url, nil
	})
}

func (pw *protoWriter) Add(key, value interface{}) error {
	msg, err := structpb.NewList([]interface{}{key, value})
	if err != nil {
		return fmt.Errorf("proto record writer: %w", err)
	}
	_, err = protodelim.MarshalTo(pw.w, msg)
	return err
}

func (pw *protoWriter) Close() error {
	return pw.w.Flush()
}
