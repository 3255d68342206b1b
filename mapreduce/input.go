package mapreduce

import (
	"errors"
	"io"

	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/stream"
)

// serialInput reads its locations one after the other. Only one chain is
// open at a time and it is closed as soon as it runs dry.
type serialInput struct {
	locs []mrworker.Location
	open func(mrworker.Location) (*stream.Chain, error)
	cur  *stream.Chain
}

func newSerialInput(locs []mrworker.Location, open func(mrworker.Location) (*stream.Chain, error)) *serialInput {
	return &serialInput{locs: locs, open: open}
}

func (in *serialInput) Next() (mrworker.Record, error) {
	for {
		if in.cur == nil {
			if len(in.locs) == 0 {
				return mrworker.Record{}, io.EOF
			}
			c, err := in.open(in.locs[0])
			if err != nil {
				return mrworker.Record{}, err
			}
			in.cur, in.locs = c, in.locs[1:]
		}
		r, err := in.cur.Next()
		if err != io.EOF {
			return r, err
		}
		c := in.cur
		in.cur = nil
		if err := c.Close(); err != nil {
			return mrworker.Record{}, err
		}
	}
}

// Close releases the chain being read, if any.
func (in *serialInput) Close() error {
	if in.cur == nil {
		return nil
	}
	c := in.cur
	in.cur = nil
	return c.Close()
}

// outputs holds the output chains of a task, keyed by partition label.
type outputs struct {
	tc    TaskContext
	open  OpenFunc
	byKey map[string]*stream.Chain
	order []string
}

func newOutputs(tc TaskContext, open OpenFunc) *outputs {
	return &outputs{tc: tc, open: open, byKey: make(map[string]*stream.Chain)}
}

func (o *outputs) get(part string) (mrworker.RecordWriter, error) {
	if c, ok := o.byKey[part]; ok {
		return c, nil
	}
	c, err := o.tc.Output(part, o.open)
	if err != nil {
		return nil, err
	}
	o.byKey[part] = c
	o.order = append(o.order, part)
	return c, nil
}

// Close closes every chain opened, in the order they were opened.
func (o *outputs) Close() error {
	var errs []error
	for _, part := range o.order {
		if err := o.byKey[part].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	o.byKey, o.order = map[string]*stream.Chain{}, nil
	return errors.Join(errs...)
}
