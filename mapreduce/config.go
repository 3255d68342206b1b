package mapreduce

import (
	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/extsort"
	"github.com/taskgraph/mrworker/partition"
	"github.com/taskgraph/mrworker/stream"
)

// TaskInfo identifies the running task to user code.
type TaskInfo struct {
	JobName string
	Mode    mrworker.Mode
	TaskID  int
}

// MapFunc turns one input entry into zero or more output records.
type MapFunc func(entry mrworker.Record, params interface{}) ([]mrworker.Record, error)

// InitFunc runs once before the first entry is pulled. It may consume from
// entries; whatever it takes is not seen by map or reduce.
type InitFunc func(entries mrworker.RecordIterator, params interface{}, info TaskInfo) error

// ReduceVariant tells how a reduce function hands back its output.
type ReduceVariant int

const (
	// ReturnsRecords functions return an iterator the worker drains into
	// the output.
	ReturnsRecords ReduceVariant = iota + 1
	// WritesDirectly functions write to the output themselves.
	WritesDirectly
)

func (v ReduceVariant) String() string {
	switch v {
	case ReturnsRecords:
		return "returns-records"
	case WritesDirectly:
		return "writes-directly"
	}
	return "unknown"
}

// Reducer is a reduce function tagged with its calling convention. Build
// one with ReducerReturns or ReducerWrites.
type Reducer struct {
	Variant ReduceVariant
	Returns func(entries mrworker.RecordIterator, params interface{}) (mrworker.RecordIterator, error)
	Writes  func(entries mrworker.RecordIterator, out mrworker.RecordWriter, params interface{}) error
}

func ReducerReturns(fn func(entries mrworker.RecordIterator, params interface{}) (mrworker.RecordIterator, error)) *Reducer {
	return &Reducer{Variant: ReturnsRecords, Returns: fn}
}

func ReducerWrites(fn func(entries mrworker.RecordIterator, out mrworker.RecordWriter, params interface{}) error) *Reducer {
	return &Reducer{Variant: WritesDirectly, Writes: fn}
}

// Config is the resolved configuration of a job. A Worker never modifies
// the Config it was given.
type Config struct {
	Map             MapFunc
	MapInit         InitFunc
	MapInputStream  []stream.Stage
	MapOutputStream []stream.Stage
	MapReader       stream.Stage
	Combiner        partition.CombineFunc
	Partition       partition.PartitionFunc
	// Partitions is the number of map output partitions. 0 writes a single
	// unpartitioned output.
	Partitions      int

	Reduce             *Reducer
	ReduceInit         InitFunc
	ReduceInputStream  []stream.Stage
	ReduceOutputStream []stream.Stage
	ReduceReader       stream.Stage
	MergePartitions    bool
	Sort               bool
	SortBufferSize     string

	Params    interface{}
	ExtParams interface{}
	// MapProgram and ReduceProgram hold the files of an external program
	// standing in for Map or Reduce.
	MapProgram    map[string][]byte
	ReduceProgram map[string][]byte

	StatusInterval int
	Save           bool
	Version        string
}

const DefaultStatusInterval = 100000

func noInit(mrworker.RecordIterator, interface{}, TaskInfo) error { return nil }

// Defaults returns the configuration every job starts from.
func Defaults() Config {
	return Config{
		MapInit:            noInit,
		MapReader:          stream.LineReader(0),
		MapOutputStream:    []stream.Stage{stream.RecordWriter(0)},
		Partition:          partition.Default,
		Partitions:         1,
		ReduceInit:         noInit,
		ReduceReader:       stream.RecordReader(0),
		ReduceOutputStream: []stream.Stage{stream.RecordWriter(0)},
		SortBufferSize:     extsort.DefaultBudget,
		ExtParams:          map[string]interface{}{},
		StatusInterval:     DefaultStatusInterval,
		Version:            RuntimeVersion(),
	}
}

func (c *Config) hasReduce() bool {
	return c.Reduce != nil || c.ReduceProgram != nil
}
