package extsort

import (
	"bufio"
	"container/heap"
	"encoding/gob"
	"errors"
	"io"
	"os"

	"github.com/taskgraph/mrworker"
)

type spilled struct {
	Key   interface{}
	Value interface{}
}

func writeRun(name string, records []mrworker.Record) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	enc := gob.NewEncoder(w)
	for _, r := range records {
		if err := enc.Encode(spilled{Key: r.Key, Value: r.Value}); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

type cursor struct {
	run  int
	f    *os.File
	dec  *gob.Decoder
	head mrworker.Record
}

func (c *cursor) advance() error {
	var s spilled
	if err := c.dec.Decode(&s); err != nil {
		return err
	}
	c.head = mrworker.Record{Key: s.Key, Value: s.Value}
	return nil
}

// cursorHeap orders cursors by head key, then by run so that equal keys come
// out run after run.
type cursorHeap []*cursor

func (h cursorHeap) Len() int { return len(h) }
func (h cursorHeap) Less(i, j int) bool {
	if c := mrworker.CompareKeys(h[i].head.Key, h[j].head.Key); c != 0 {
		return c < 0
	}
	return h[i].run < h[j].run
}
func (h cursorHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *cursorHeap) Push(x interface{}) { *h = append(*h, x.(*cursor)) }
func (h *cursorHeap) Pop() interface{} {
	old := *h
	c := old[len(old)-1]
	*h = old[:len(old)-1]
	return c
}

type merger struct {
	runs    []string
	cursors []*cursor
	h       cursorHeap
	closed  bool
}

func newMerger(runs []string) (*merger, error) {
	m := &merger{runs: runs}
	for i, name := range runs {
		f, err := os.Open(name)
		if err != nil {
			m.Close()
			return nil, err
		}
		c := &cursor{run: i, f: f, dec: gob.NewDecoder(bufio.NewReader(f))}
		m.cursors = append(m.cursors, c)
		err = c.advance()
		if err == io.EOF {
			continue
		}
		if err != nil {
			m.Close()
			return nil, err
		}
		m.h = append(m.h, c)
	}
	heap.Init(&m.h)
	return m, nil
}

func (m *merger) Next() (mrworker.Record, error) {
	if m.closed || m.h.Len() == 0 {
		if err := m.Close(); err != nil {
			return mrworker.Record{}, err
		}
		return mrworker.Record{}, io.EOF
	}
	c := m.h[0]
	r := c.head
	switch err := c.advance(); err {
	case nil:
		heap.Fix(&m.h, 0)
	case io.EOF:
		heap.Pop(&m.h)
	default:
		return mrworker.Record{}, err
	}
	return r, nil
}

// Close releases the run files and deletes them.
func (m *merger) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	var errs []error
	for _, c := range m.cursors {
		if err := c.f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := removeAll(m.runs); err != nil {
		errs = append(errs, err)
	}
	m.h = nil
	return errors.Join(errs...)
}

func removeAll(names []string) error {
	var errs []error
	for _, name := range names {
		if err := os.Remove(name); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
