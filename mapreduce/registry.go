package mapreduce

import (
	"errors"
	"fmt"
	"sync"

	"github.com/taskgraph/mrworker/partition"
	"github.com/taskgraph/mrworker/stream"
)

var ErrUnknownName = errors.New("mapreduce: name not registered")

// Registry maps the names used in job specs to functions linked into the
// worker binary. Functions are registered at process start, usually from an
// init or a Register function of the package defining them.
type Registry struct {
	mu         sync.RWMutex
	maps       map[string]MapFunc
	inits      map[string]InitFunc
	combiners  map[string]partition.CombineFunc
	partitions map[string]partition.PartitionFunc
	reducers   map[string]*Reducer
	stages     map[string]stream.Stage
}

func NewRegistry() *Registry {
	return &Registry{
		maps:       make(map[string]MapFunc),
		inits:      make(map[string]InitFunc),
		combiners:  make(map[string]partition.CombineFunc),
		partitions: make(map[string]partition.PartitionFunc),
		reducers:   make(map[string]*Reducer),
		stages:     make(map[string]stream.Stage),
	}
}

// DefaultRegistry returns a registry holding the built-in stages and the
// default partition function.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.RegisterStage("lines", stream.LineReader(0))
	r.RegisterStage("records", stream.RecordReader(0))
	r.RegisterStage("record_writer", stream.RecordWriter(0))
	r.RegisterStage("proto_records", stream.ProtoRecordReader(0))
	r.RegisterStage("proto_record_writer", stream.ProtoRecordWriter(0))
	r.RegisterStage("gunzip", stream.Gunzip())
	r.RegisterStage("gzip", stream.Gzip())
	r.RegisterPartition("default", partition.Default)
	return r
}

func register[T any](r *Registry, m map[string]T, kind, name string, v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := m[name]; dup {
		panic(fmt.Sprintf("mapreduce: %s %q registered twice", kind, name))
	}
	m[name] = v
}

func lookup[T any](r *Registry, m map[string]T, kind, name string) (T, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := m[name]
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: %s %q", ErrUnknownName, kind, name)
	}
	return v, nil
}

// Register* panic when name is already taken.
func (r *Registry) RegisterMap(name string, fn MapFunc) {
	register(r, r.maps, "map", name, fn)
}
func (r *Registry) RegisterInit(name string, fn InitFunc) {
	register(r, r.inits, "init", name, fn)
}
func (r *Registry) RegisterCombiner(name string, fn partition.CombineFunc) {
	register(r, r.combiners, "combiner", name, fn)
}
func (r *Registry) RegisterPartition(name string, fn partition.PartitionFunc) {
	register(r, r.partitions, "partition", name, fn)
}
func (r *Registry) RegisterReducer(name string, red *Reducer) {
	register(r, r.reducers, "reduce", name, red)
}
func (r *Registry) RegisterStage(name string, s stream.Stage) {
	register(r, r.stages, "stream", name, s)
}

func (r *Registry) stageList(names []string, def []stream.Stage) ([]stream.Stage, error) {
	if names == nil {
		return def, nil
	}
	stages := make([]stream.Stage, 0, len(names))
	for _, name := range names {
		s, err := lookup(r, r.stages, "stream", name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	return stages, nil
}

// Resolve binds every name of spec to its registered value, filling in the
// defaults for what spec leaves out.
func (r *Registry) Resolve(spec *JobSpec) (*Config, error) {
	cfg := Defaults()
	var err error

	switch {
	case spec.Map.Program != nil:
		cfg.MapProgram = spec.Map.files()
	case spec.Map.Name != "":
		if cfg.Map, err = lookup(r, r.maps, "map", spec.Map.Name); err != nil {
			return nil, err
		}
	}
	switch {
	case spec.Reduce.Program != nil:
		cfg.ReduceProgram = spec.Reduce.files()
	case spec.Reduce.Name != "":
		if cfg.Reduce, err = lookup(r, r.reducers, "reduce", spec.Reduce.Name); err != nil {
			return nil, err
		}
	}
	if spec.MapInit != "" {
		if cfg.MapInit, err = lookup(r, r.inits, "init", spec.MapInit); err != nil {
			return nil, err
		}
	}
	if spec.ReduceInit != "" {
		if cfg.ReduceInit, err = lookup(r, r.inits, "init", spec.ReduceInit); err != nil {
			return nil, err
		}
	}
	if spec.Combiner != "" {
		if cfg.Combiner, err = lookup(r, r.combiners, "combiner", spec.Combiner); err != nil {
			return nil, err
		}
	}
	if spec.Partition != "" {
		if cfg.Partition, err = lookup(r, r.partitions, "partition", spec.Partition); err != nil {
			return nil, err
		}
	}
	if spec.MapReader != "" {
		if cfg.MapReader, err = lookup(r, r.stages, "stream", spec.MapReader); err != nil {
			return nil, err
		}
	}
	if spec.ReduceReader != "" {
		if cfg.ReduceReader, err = lookup(r, r.stages, "stream", spec.ReduceReader); err != nil {
			return nil, err
		}
	}
	if cfg.MapInputStream, err = r.stageList(spec.MapInputStream, cfg.MapInputStream); err != nil {
		return nil, err
	}
	if cfg.MapOutputStream, err = r.stageList(spec.MapOutputStream, cfg.MapOutputStream); err != nil {
		return nil, err
	}
	if cfg.ReduceInputStream, err = r.stageList(spec.ReduceInputStream, cfg.ReduceInputStream); err != nil {
		return nil, err
	}
	if cfg.ReduceOutputStream, err = r.stageList(spec.ReduceOutputStream, cfg.ReduceOutputStream); err != nil {
		return nil, err
	}

	if spec.Partitions != nil {
		cfg.Partitions = *spec.Partitions
	}
	if spec.StatusInterval != nil {
		cfg.StatusInterval = *spec.StatusInterval
	}
	if spec.SortBufferSize != "" {
		cfg.SortBufferSize = spec.SortBufferSize
	}
	if spec.ExtParams != nil {
		cfg.ExtParams = spec.ExtParams
	}
	if spec.Version != "" {
		cfg.Version = spec.Version
	}
	cfg.MergePartitions = spec.MergePartitions
	cfg.Sort = spec.Sort
	cfg.Save = spec.Save
	cfg.Params = spec.Params
	return &cfg, nil
}
