// Package stream composes independently written transform stages around a
// raw resource handle. Opening a resource runs every stage in order, each one
// wrapping the handle the previous one produced; closing tears the layers
// down again from the top.
package stream

import (
	"errors"
	"fmt"
	"io"

	"github.com/taskgraph/mrworker"
)

var (
	ErrNotReadable = errors.New("stream: final handle is not a record iterator")
	ErrNotWritable = errors.New("stream: final handle is not a record writer")
)

// Handle is whatever a stage produces: an io.Reader, a record iterator, a
// buffered writer... The chain only cares whether it can be closed.
type Handle interface{}

// Stage wraps the handle below it. It gets the running size and url and must
// return them, changed or not, along with the new handle.
type Stage interface {
	Open(fd Handle, size int64, url string) (Handle, int64, string, error)
}

// ParamsStage is implemented by stages that need the task params. The chain
// calls OpenParams instead of Open for them.
type ParamsStage interface {
	Stage
	OpenParams(fd Handle, size int64, url string, params interface{}) (Handle, int64, string, error)
}

// StageFunc adapts a plain function into a Stage.
type StageFunc func(fd Handle, size int64, url string) (Handle, int64, string, error)

func (f StageFunc) Open(fd Handle, size int64, url string) (Handle, int64, string, error) {
	return f(fd, size, url)
}

// ParamsStageFunc adapts a plain function into a ParamsStage.
type ParamsStageFunc func(fd Handle, size int64, url string, params interface{}) (Handle, int64, string, error)

func (f ParamsStageFunc) Open(fd Handle, size int64, url string) (Handle, int64, string, error) {
	return f(fd, size, url, nil)
}

func (f ParamsStageFunc) OpenParams(fd Handle, size int64, url string, params interface{}) (Handle, int64, string, error) {
	return f(fd, size, url, params)
}

// Chain holds every handle produced while opening a resource, raw handle
// first.
type Chain struct {
	fds    []Handle
	size   int64
	url    string
	closed bool
}

// Open applies stages to raw in order. If a stage fails the handles produced
// so far are closed before the error is returned.
func Open(raw Handle, size int64, url string, stages []Stage, params interface{}) (*Chain, error) {
	c := &Chain{fds: []Handle{raw}, size: size, url: url}
	fd := raw
	for i, stage := range stages {
		if stage == nil {
			continue
		}
		var err error
		if ps, ok := stage.(ParamsStage); ok {
			fd, size, url, err = ps.OpenParams(fd, size, url, params)
		} else {
			fd, size, url, err = stage.Open(fd, size, url)
		}
		if err != nil {
			if cerr := c.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
			return nil, fmt.Errorf("stream: stage %d on %s: %w", i, c.url, err)
		}
		c.fds = append(c.fds, fd)
		c.size, c.url = size, url
	}
	return c, nil
}

// Handles returns h0..hn.
func (c *Chain) Handles() []Handle { return c.fds }

// Last is the handle produced by the final stage.
func (c *Chain) Last() Handle { return c.fds[len(c.fds)-1] }

// Size is the size reported by the final stage, mrworker.SizeUnknown if none
// could tell.
func (c *Chain) Size() int64 { return c.size }

// URL is the location reported by the final stage.
func (c *Chain) URL() string { return c.url }

func (c *Chain) Next() (mrworker.Record, error) {
	it, ok := c.Last().(mrworker.RecordIterator)
	if !ok {
		return mrworker.Record{}, ErrNotReadable
	}
	return it.Next()
}

func (c *Chain) Add(key, value interface{}) error {
	w, ok := c.Last().(mrworker.RecordWriter)
	if !ok {
		return ErrNotWritable
	}
	return w.Add(key, value)
}

// Close closes hn..h0, skipping handles without a Close method. Every close
// is attempted; the failures are returned joined together.
func (c *Chain) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for i := len(c.fds) - 1; i >= 0; i-- {
		closer, ok := c.fds[i].(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
