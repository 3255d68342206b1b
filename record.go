package mrworker

import "io"

// Record is the key/value pair that flows through a task. The worker never
// looks inside keys or values, it only routes them.
type Record struct {
	Key   interface{}
	Value interface{}
}

// RecordIterator allows one to pull records from a source, one at a time.
// Next returns io.EOF once the source is exhausted.
type RecordIterator interface {
	Next() (Record, error)
}

// RecordWriter is the terminal sink of an output stream.
type RecordWriter interface {
	Add(key, value interface{}) error
}

// IteratorFunc adapts a plain function into a RecordIterator.
type IteratorFunc func() (Record, error)

func (f IteratorFunc) Next() (Record, error) { return f() }

// WriterFunc adapts a plain function into a RecordWriter.
type WriterFunc func(key, value interface{}) error

func (f WriterFunc) Add(key, value interface{}) error { return f(key, value) }

type sliceIterator struct {
	records []Record
	pos     int
}

// SliceIterator iterates over an in-memory list of records.
func SliceIterator(records ...Record) RecordIterator {
	return &sliceIterator{records: records}
}

func (it *sliceIterator) Next() (Record, error) {
	if it.pos >= len(it.records) {
		return Record{}, io.EOF
	}
	r := it.records[it.pos]
	it.pos++
	return r, nil
}

// Collect drains an iterator into a slice.
func Collect(it RecordIterator) ([]Record, error) {
	var out []Record
	for {
		r, err := it.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, r)
	}
}

// Drain writes every record of it into w.
func Drain(it RecordIterator, w RecordWriter) error {
	for {
		r, err := it.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := w.Add(r.Key, r.Value); err != nil {
			return err
		}
	}
}
