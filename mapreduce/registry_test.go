package mapreduce

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/partition"
)

const jobJSON = `{
	"name": "wc",
	"map": "split",
	"map_reader": "lines",
	"map_input_stream": ["gunzip"],
	"combiner": "sum",
	"partitions": 4,
	"reduce": "count",
	"reduce_output_stream": [],
	"sort": true,
	"sort_buffer_size": "64M",
	"params": {"min": 2},
	"status_interval": 0
}`

func testRegistry() *Registry {
	r := DefaultRegistry()
	r.RegisterMap("split", identity)
	r.RegisterCombiner("sum", func(key, value interface{}, buf partition.Buffer, final bool, params interface{}) ([]mrworker.Record, error) {
		return nil, nil
	})
	r.RegisterReducer("count", ReducerWrites(func(mrworker.RecordIterator, mrworker.RecordWriter, interface{}) error {
		return nil
	}))
	return r
}

func TestResolveJobSpec(t *testing.T) {
	spec, err := Parse([]byte(jobJSON))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	cfg, err := testRegistry().Resolve(spec)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.Map == nil || cfg.Combiner == nil || cfg.Reduce == nil || cfg.Reduce.Variant != WritesDirectly {
		t.Fatalf("functions not bound: %+v", cfg)
	}
	if cfg.Partitions != 4 || !cfg.Sort || cfg.SortBufferSize != "64M" || cfg.StatusInterval != 0 {
		t.Errorf("options not applied: %+v", cfg)
	}
	if len(cfg.MapInputStream) != 1 || cfg.MapReader == nil {
		t.Errorf("map streams = %v, reader %v", cfg.MapInputStream, cfg.MapReader)
	}
	if cfg.ReduceOutputStream == nil || len(cfg.ReduceOutputStream) != 0 {
		t.Errorf("explicit empty output stream lost: %v", cfg.ReduceOutputStream)
	}
	if len(cfg.MapOutputStream) != 1 {
		t.Errorf("default map output stream missing")
	}
	params := cfg.Params.(map[string]interface{})
	if params["min"] != json.Number("2") {
		t.Errorf("params = %v", params)
	}
	if cfg.Version != RuntimeVersion() || cfg.MapInit == nil || cfg.ReduceReader == nil {
		t.Errorf("defaults not filled: %+v", cfg)
	}
}

func TestResolveDefaults(t *testing.T) {
	cfg, err := testRegistry().Resolve(&JobSpec{Map: Func("split")})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.Partitions != 1 || cfg.StatusInterval != DefaultStatusInterval || cfg.SortBufferSize != "10%" {
		t.Errorf("defaults = %+v", cfg)
	}
	if cfg.Reduce != nil || cfg.Sort {
		t.Errorf("reduce configured by default")
	}
}

func TestResolveUnknownName(t *testing.T) {
	for _, spec := range []*JobSpec{
		{Map: Func("nope")},
		{Reduce: Func("nope")},
		{MapInputStream: []string{"bzip2"}},
		{Combiner: "nope"},
		{Partition: "nope"},
	} {
		if _, err := testRegistry().Resolve(spec); !errors.Is(err, ErrUnknownName) {
			t.Errorf("Resolve(%+v) error = %v, want ErrUnknownName", spec, err)
		}
	}
}

func TestExternalProgramSpec(t *testing.T) {
	spec, err := Parse([]byte(`{"map": {"op": "#!/bin/sh\ncat\n"}, "ext_params": {"x": "1"}}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if spec.Map.Name != "" || spec.Map.Program["op"] != "#!/bin/sh\ncat\n" {
		t.Fatalf("map ref = %+v", spec.Map)
	}
	cfg, err := testRegistry().Resolve(spec)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if cfg.Map != nil || string(cfg.MapProgram["op"]) != "#!/bin/sh\ncat\n" {
		t.Errorf("map program = %v", cfg.MapProgram)
	}
	if ext := cfg.ExtParams.(map[string]interface{}); ext["x"] != "1" {
		t.Errorf("ext params = %v", cfg.ExtParams)
	}

	out, err := Dump(spec)
	if err != nil {
		t.Fatalf("Dump failed: %v", err)
	}
	if !strings.Contains(string(out), `"map":{"op":`) || !strings.Contains(string(out), `"reduce":null`) {
		t.Errorf("Dump = %s", out)
	}
}

func TestFuncRefRejectsNumbers(t *testing.T) {
	if _, err := Parse([]byte(`{"map": 12}`)); err == nil {
		t.Errorf("Parse should reject a numeric function reference")
	}
}

func TestRegisterTwicePanics(t *testing.T) {
	r := NewRegistry()
	r.RegisterMap("m", identity)
	defer func() {
		if recover() == nil {
			t.Errorf("second registration did not panic")
		}
	}()
	r.RegisterMap("m", identity)
}

func TestResolvePartitionsNull(t *testing.T) {
	for _, c := range []struct {
		json string
		want int
	}{
		{`{"map": "split"}`, 1},
		{`{"map": "split", "partitions": null}`, 0},
		{`{"map": "split", "partitions": 3}`, 3},
	} {
		spec, err := Parse([]byte(c.json))
		if err != nil {
			t.Fatalf("Parse(%s) failed: %v", c.json, err)
		}
		cfg, err := testRegistry().Resolve(spec)
		if err != nil {
			t.Fatalf("Resolve(%s) failed: %v", c.json, err)
		}
		if cfg.Partitions != c.want {
			t.Errorf("%s: partitions = %d, want %d", c.json, cfg.Partitions, c.want)
		}
	}
	spec, err := Parse([]byte(`{"map": "split", "partitions": null, "params": {"n": 1}}`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if n := spec.Params.(map[string]interface{})["n"]; n != json.Number("1") {
		t.Errorf("params number = %v (%T), want json.Number", n, n)
	}
}
