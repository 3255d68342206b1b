package mapreduce

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// FuncRef names a registered function, or carries the files of an external
// program that stands in for it. In JSON it is either a string or an object
// mapping file names to their contents.
type FuncRef struct {
	Name    string
	Program map[string]string
}

func Func(name string) FuncRef { return FuncRef{Name: name} }

func (f FuncRef) IsZero() bool { return f.Name == "" && f.Program == nil }

func (f FuncRef) files() map[string][]byte {
	files := make(map[string][]byte, len(f.Program))
	for name, content := range f.Program {
		files[name] = []byte(content)
	}
	return files
}

func (f FuncRef) MarshalJSON() ([]byte, error) {
	if f.Program != nil {
		return json.Marshal(f.Program)
	}
	if f.Name == "" {
		return []byte("null"), nil
	}
	return json.Marshal(f.Name)
}

func (f *FuncRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '{':
		f.Name = ""
		return json.Unmarshal(data, &f.Program)
	}
	f.Program = nil
	if err := json.Unmarshal(data, &f.Name); err != nil {
		return fmt.Errorf("function reference must be a name or a program: %w", err)
	}
	return nil
}

// JobSpec is the serialized form of a job's configuration. Functions and
// stages are referenced by their registry names; options left out take the
// defaults of Defaults.
type JobSpec struct {
	Name string `json:"name,omitempty"`

	Map             FuncRef  `json:"map"`
	MapInit         string   `json:"map_init,omitempty"`
	MapInputStream  []string `json:"map_input_stream,omitempty"`
	MapOutputStream []string `json:"map_output_stream,omitempty"`
	MapReader       string   `json:"map_reader,omitempty"`
	Combiner        string   `json:"combiner,omitempty"`
	Partition       string   `json:"partition,omitempty"`
	// Partitions left out defaults to 1; an explicit null means unpartitioned.
	Partitions      *int     `json:"partitions,omitempty"`

	Reduce             FuncRef  `json:"reduce"`
	ReduceInit         string   `json:"reduce_init,omitempty"`
	ReduceInputStream  []string `json:"reduce_input_stream,omitempty"`
	ReduceOutputStream []string `json:"reduce_output_stream,omitempty"`
	ReduceReader       string   `json:"reduce_reader,omitempty"`
	MergePartitions    bool     `json:"merge_partitions,omitempty"`
	Sort               bool     `json:"sort,omitempty"`
	SortBufferSize     string   `json:"sort_buffer_size,omitempty"`

	Params         interface{} `json:"params,omitempty"`
	ExtParams      interface{} `json:"ext_params,omitempty"`
	StatusInterval *int        `json:"status_interval,omitempty"`
	Save           bool        `json:"save,omitempty"`
	Version        string      `json:"version,omitempty"`
}

func (s *JobSpec) UnmarshalJSON(data []byte) error {
	type plain JobSpec
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode((*plain)(s)); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if raw, ok := fields["partitions"]; ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		s.Partitions = new(int)
	}
	return nil
}

// Parse decodes a job spec. Numbers inside params are kept as json.Number.
func Parse(buf []byte) (*JobSpec, error) {
	return ReadJobSpec(bytes.NewReader(buf))
}

func Dump(spec *JobSpec) ([]byte, error) {
	return json.Marshal(spec)
}

func ReadJobSpec(r io.Reader) (*JobSpec, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	spec := &JobSpec{}
	if err := dec.Decode(spec); err != nil {
		return nil, fmt.Errorf("job spec: %w", err)
	}
	return spec, nil
}

func LoadJobSpec(path string) (*JobSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadJobSpec(f)
}
