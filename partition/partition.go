// Package partition routes map output to per-partition sinks, optionally
// pre-aggregating it with a combiner.
package partition

import (
	"errors"
	"fmt"
	"hash/fnv"
	"strconv"

	"github.com/taskgraph/mrworker"
)

// None is the partition label used when output is not partitioned.
const None = ""

var ErrFlushed = errors.New("partition: stage already flushed")

// PartitionFunc assigns a key to one of partitions buckets. It must be a pure
// function of its arguments.
type PartitionFunc func(key interface{}, partitions int, params interface{}) int

// Buffer is the combiner state of one partition. Keys stored in it must be
// comparable.
type Buffer map[interface{}]interface{}

// CombineFunc folds (key, value) into buf and returns the records that are
// ready to be written. At end of input it is called once more per partition
// with nil key and value and final set, and must return whatever is left.
type CombineFunc func(key, value interface{}, buf Buffer, final bool, params interface{}) ([]mrworker.Record, error)

// Default hashes the key with FNV-32a. Strings and byte slices are hashed as
// is, anything else through its fmt representation.
func Default(key interface{}, partitions int, params interface{}) int {
	h := fnv.New32a()
	switch k := key.(type) {
	case string:
		h.Write([]byte(k))
	case []byte:
		h.Write(k)
	default:
		h.Write([]byte(fmt.Sprint(k)))
	}
	return int(h.Sum32() % uint32(partitions))
}

// Stage is the map side routing step. Output is called for every record
// written, so it should hand back the same sink for the same label.
type Stage struct {
	Partitions int
	Partition  PartitionFunc
	Combiner   CombineFunc
	Params     interface{}
	Output     func(part string) (mrworker.RecordWriter, error)

	bufs    map[string]Buffer
	order   []string
	flushed bool
}

// Label returns the partition label of key.
func (s *Stage) Label(key interface{}) string {
	if s.Partitions <= 0 {
		return None
	}
	fn := s.Partition
	if fn == nil {
		fn = Default
	}
	return strconv.Itoa(fn(key, s.Partitions, s.Params))
}

// Add routes one map output record.
func (s *Stage) Add(key, value interface{}) error {
	if s.flushed {
		return ErrFlushed
	}
	part := s.Label(key)
	if s.Combiner == nil {
		return s.write(part, key, value)
	}
	buf, ok := s.bufs[part]
	if !ok {
		if s.bufs == nil {
			s.bufs = make(map[string]Buffer)
		}
		buf = make(Buffer)
		s.bufs[part] = buf
		s.order = append(s.order, part)
	}
	out, err := s.Combiner(key, value, buf, false, s.Params)
	if err != nil {
		return err
	}
	return s.emit(part, out)
}

// Flush gives every buffer created so far its final combiner call, in the
// order the buffers were created, then drops them.
func (s *Stage) Flush() error {
	if s.flushed {
		return ErrFlushed
	}
	s.flushed = true
	for _, part := range s.order {
		out, err := s.Combiner(nil, nil, s.bufs[part], true, s.Params)
		if err != nil {
			return err
		}
		if err := s.emit(part, out); err != nil {
			return err
		}
		delete(s.bufs, part)
	}
	s.order = nil
	return nil
}

func (s *Stage) emit(part string, records []mrworker.Record) error {
	for _, r := range records {
		if err := s.write(part, r.Key, r.Value); err != nil {
			return err
		}
	}
	return nil
}

func (s *Stage) write(part string, key, value interface{}) error {
	w, err := s.Output(part)
	if err != nil {
		return err
	}
	return w.Add(key, value)
}
