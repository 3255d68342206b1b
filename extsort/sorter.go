// Package extsort orders a record stream by key, spilling to disk when the
// stream doesn't fit the memory budget.
//
// Spilled records are gob encoded. Keys and values of the basic Go types,
// json.Number, []interface{} and map[string]interface{} work out of the box;
// other concrete types must be registered with encoding/gob first.
package extsort

import (
	"encoding/gob"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"

	"github.com/taskgraph/mrworker"
)

func init() {
	gob.Register(json.Number(""))
	gob.Register([]interface{}{})
	gob.Register(map[string]interface{}{})
}

// Sorter produces a stream ordered by ascending key, equal keys adjacent.
// The input is consumed exactly once. The order of values sharing a key is
// unspecified.
type Sorter interface {
	Sort(in mrworker.RecordIterator, spillPath string, budget string) (mrworker.RecordIterator, error)
}

// recordOverhead approximates the per record cost beyond key and value bytes.
const recordOverhead = 48

// DiskSorter sorts batches that fit the budget in memory and merges the
// spilled runs. The iterator it returns implements io.Closer; closing it
// removes the run files.
type DiskSorter struct {
	Logger *log.Logger
}

func NewDiskSorter(logger *log.Logger) *DiskSorter {
	return &DiskSorter{Logger: logger}
}

func (s *DiskSorter) Sort(in mrworker.RecordIterator, spillPath string, budget string) (mrworker.RecordIterator, error) {
	limit, err := ParseBudget(budget)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(spillPath), 0755); err != nil {
		return nil, err
	}
	prefix := fmt.Sprintf("%s.%s", spillPath, uuid.NewString())

	var (
		batch []mrworker.Record
		used  int64
		runs  []string
	)
	fail := func(err error) (mrworker.RecordIterator, error) {
		removeAll(runs)
		return nil, err
	}
	for {
		r, err := in.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fail(err)
		}
		batch = append(batch, r)
		used += recordOverhead + sizeOf(r.Key) + sizeOf(r.Value)
		if used < limit {
			continue
		}
		name := fmt.Sprintf("%s.%d", prefix, len(runs))
		runs = append(runs, name)
		if err := writeRun(name, sortBatch(batch)); err != nil {
			return fail(err)
		}
		s.logf("ExternalSort : spilled run %d, %d records, to %s", len(runs)-1, len(batch), name)
		batch, used = nil, 0
	}
	if len(runs) == 0 {
		return &memoryIterator{records: sortBatch(batch)}, nil
	}
	if len(batch) > 0 {
		name := fmt.Sprintf("%s.%d", prefix, len(runs))
		runs = append(runs, name)
		if err := writeRun(name, sortBatch(batch)); err != nil {
			return fail(err)
		}
	}
	m, err := newMerger(runs)
	if err != nil {
		return fail(err)
	}
	s.logf("ExternalSort : merging %d runs", len(runs))
	return m, nil
}

func (s *DiskSorter) logf(format string, args ...interface{}) {
	if s.Logger != nil {
		s.Logger.Printf(format, args...)
	}
}

func sortBatch(batch []mrworker.Record) []mrworker.Record {
	sort.SliceStable(batch, func(i, j int) bool {
		return mrworker.CompareKeys(batch[i].Key, batch[j].Key) < 0
	})
	return batch
}

func sizeOf(v interface{}) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case string:
		return int64(len(t))
	case []byte:
		return int64(len(t))
	case json.Number:
		return int64(len(t))
	case []interface{}:
		var n int64
		for _, e := range t {
			n += 16 + sizeOf(e)
		}
		return n
	case map[string]interface{}:
		var n int64
		for k, e := range t {
			n += 32 + int64(len(k)) + sizeOf(e)
		}
		return n
	}
	return 16
}

type memoryIterator struct {
	records []mrworker.Record
	pos     int
}

func (it *memoryIterator) Next() (mrworker.Record, error) {
	if it.pos >= len(it.records) {
		it.records = nil
		return mrworker.Record{}, io.EOF
	}
	r := it.records[it.pos]
	it.pos++
	return r, nil
}

func (it *memoryIterator) Close() error {
	it.records = nil
	return nil
}
