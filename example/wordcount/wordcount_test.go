package wordcount

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/filesystem"
	"github.com/taskgraph/mrworker/mapreduce"
	"github.com/taskgraph/mrworker/partition"
	"github.com/taskgraph/mrworker/task"
)

func TestSplit(t *testing.T) {
	out, err := Split(mrworker.Record{Value: "The cat  saw the\tdog"}, nil)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if len(out) != 5 || out[0].Key != "the" || out[3].Key != "the" || out[4].Value != 1 {
		t.Errorf("Split = %v", out)
	}
	if _, err := Split(mrworker.Record{Value: 3}, nil); err == nil {
		t.Errorf("Split of a non-string should fail")
	}
}

func TestCombine(t *testing.T) {
	buf := partition.Buffer{}
	for _, w := range []string{"a", "b", "a"} {
		out, err := Combine(w, 1, buf, false, nil)
		if err != nil || len(out) != 0 {
			t.Fatalf("Combine = %v, %v", out, err)
		}
	}
	out, err := Combine(nil, nil, buf, true, nil)
	if err != nil {
		t.Fatalf("final Combine failed: %v", err)
	}
	got := map[interface{}]interface{}{}
	for _, r := range out {
		got[r.Key] = r.Value
	}
	if got["a"] != int64(2) || got["b"] != int64(1) || len(got) != 2 {
		t.Errorf("combined = %v", got)
	}
}

func TestSumGroupsSortedInput(t *testing.T) {
	in := mrworker.SliceIterator(
		mrworker.Record{Key: "a", Value: json.Number("2")},
		mrworker.Record{Key: "a", Value: 1},
		mrworker.Record{Key: "b", Value: int64(4)},
		mrworker.Record{Key: "c", Value: 1.0},
		mrworker.Record{Key: "c", Value: 1},
	)
	it, err := Sum(in, nil)
	if err != nil {
		t.Fatalf("Sum failed: %v", err)
	}
	out, err := mrworker.Collect(it)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	want := []string{"a 3", "b 4", "c 2"}
	if len(out) != len(want) {
		t.Fatalf("Sum = %v", out)
	}
	for i, r := range out {
		if s := fmt.Sprint(r.Key, " ", r.Value); s != want[i] {
			t.Errorf("group %d = %q, want %q", i, s, want[i])
		}
	}
}

func TestSumGroupsEqualKeysOfMixedTypes(t *testing.T) {
	in := mrworker.SliceIterator(
		mrworker.Record{Key: json.Number("7"), Value: 1},
		mrworker.Record{Key: 7, Value: 2},
		mrworker.Record{Key: []byte("w"), Value: 1},
		mrworker.Record{Key: "w", Value: 1},
	)
	it, _ := Sum(in, nil)
	out, err := mrworker.Collect(it)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(out) != 2 || out[0].Value != int64(3) || out[1].Value != int64(2) {
		t.Errorf("Sum = %v, want two groups of 3 and 2", out)
	}
}

func TestSumBadCount(t *testing.T) {
	it, _ := Sum(mrworker.SliceIterator(mrworker.Record{Key: "a", Value: "x"}), nil)
	if _, err := it.Next(); err == nil {
		t.Errorf("Sum accepted a bad count")
	}
}

func readCounts(t *testing.T, path string, counts map[string]int64) {
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	s := bufio.NewScanner(f)
	for s.Scan() {
		var kv struct {
			Key   string `json:"key"`
			Value int64  `json:"value"`
		}
		if err := json.Unmarshal(s.Bytes(), &kv); err != nil {
			t.Fatalf("bad output line %q: %v", s.Text(), err)
		}
		counts[kv.Key] += kv.Value
	}
}

const job = `{
	"name": "wc",
	"map": "wordcount.split",
	"combiner": "wordcount.combine",
	"partitions": 3,
	"reduce": %q,
	"sort": %v,
	"status_interval": 1
}`

func TestWordCountJob(t *testing.T) {
	for _, tc := range []struct {
		reduce string
		sort   bool
	}{
		{"wordcount.sum", true},
		{"wordcount.tally", false},
	} {
		dir := t.TempDir()
		in := filepath.Join(dir, "in")
		os.MkdirAll(in, 0755)
		ioutil.WriteFile(filepath.Join(in, "0.txt"), []byte("to be or\nnot to be\n"), 0644)
		ioutil.WriteFile(filepath.Join(in, "1.txt"), []byte("To see\n"), 0644)

		r := mapreduce.DefaultRegistry()
		Register(r)
		spec, err := mapreduce.Parse([]byte(fmt.Sprintf(job, tc.reduce, tc.sort)))
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		cfg, err := r.Resolve(spec)
		if err != nil {
			t.Fatalf("Resolve failed: %v", err)
		}
		router := filesystem.NewRouter()
		w := mapreduce.NewWorker(*cfg, router, nil, log.New(ioutil.Discard, "", 0))

		inputs, err := task.Expand(router, []string{filepath.Join(in, "*.txt")})
		if err != nil {
			t.Fatalf("Expand failed: %v", err)
		}
		var parts []mrworker.Location
		for id, loc := range inputs {
			m := &task.Local{Job: "wc", TaskMode: mrworker.MapMode, ID: id, Locations: []mrworker.Location{loc},
				OutputDir: filepath.Join(dir, "out"), WorkDir: filepath.Join(dir, "work"), Storage: router}
			if err := w.Run(context.Background(), m); err != nil {
				t.Fatalf("map %d failed: %v", id, err)
			}
			if err := m.Commit(); err != nil {
				t.Fatalf("commit failed: %v", err)
			}
			parts = append(parts, m.Outputs()...)
		}

		counts := map[string]int64{}
		for id := 0; id < 3; id++ {
			red := &task.Local{Job: "wc", TaskMode: mrworker.ReduceMode, ID: id, Locations: parts,
				OutputDir: filepath.Join(dir, "out"), WorkDir: filepath.Join(dir, "work"), Storage: router}
			if err := w.Run(context.Background(), red); err != nil {
				t.Fatalf("%s: reduce %d failed: %v", tc.reduce, id, err)
			}
			if err := red.Commit(); err != nil {
				t.Fatalf("commit failed: %v", err)
			}
			readCounts(t, red.Outputs()[0].URL, counts)
		}
		want := map[string]int64{"to": 3, "be": 2, "or": 1, "not": 1, "see": 1}
		if fmt.Sprint(counts) != fmt.Sprint(want) {
			t.Errorf("%s: counts = %v, want %v", tc.reduce, counts, want)
		}
	}
}
