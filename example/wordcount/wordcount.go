// Package wordcount is a small job written against the mapreduce package. It
// counts word occurrences across text inputs.
package wordcount

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/mapreduce"
	"github.com/taskgraph/mrworker/partition"
)

// Split emits (word, 1) for every whitespace separated word of a line.
func Split(entry mrworker.Record, params interface{}) ([]mrworker.Record, error) {
	line, ok := entry.Value.(string)
	if !ok {
		return nil, fmt.Errorf("wordcount: expected a line, got %T", entry.Value)
	}
	words := strings.Fields(line)
	out := make([]mrworker.Record, 0, len(words))
	for _, w := range words {
		out = append(out, mrworker.Record{Key: strings.ToLower(w), Value: 1})
	}
	return out, nil
}

// Count reads a count value as it comes out of either map or the
// intermediate record format.
func Count(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case json.Number:
		return n.Int64()
	}
	return 0, fmt.Errorf("wordcount: bad count %v (%T)", v, v)
}

// Combine sums counts per word and releases them at the final flush.
func Combine(key, value interface{}, buf partition.Buffer, final bool, params interface{}) ([]mrworker.Record, error) {
	if !final {
		n, err := Count(value)
		if err != nil {
			return nil, err
		}
		prev, _ := buf[key].(int64)
		buf[key] = prev + n
		return nil, nil
	}
	out := make([]mrworker.Record, 0, len(buf))
	for k, v := range buf {
		out = append(out, mrworker.Record{Key: k, Value: v})
	}
	return out, nil
}

// groups walks sorted entries one key at a time.
type groups struct {
	entries mrworker.RecordIterator
	next    *mrworker.Record
	done    bool
}

func (g *groups) Next() (mrworker.Record, error) {
	if g.done {
		return mrworker.Record{}, io.EOF
	}
	if g.next == nil {
		r, err := g.entries.Next()
		if err != nil {
			if err == io.EOF {
				g.done = true
			}
			return mrworker.Record{}, err
		}
		g.next = &r
	}
	key := g.next.Key
	total, err := Count(g.next.Value)
	if err != nil {
		return mrworker.Record{}, err
	}
	for {
		r, err := g.entries.Next()
		if err == io.EOF {
			g.done = true
			g.next = nil
			break
		}
		if err != nil {
			return mrworker.Record{}, err
		}
		if mrworker.CompareKeys(r.Key, key) != 0 {
			g.next = &r
			break
		}
		n, err := Count(r.Value)
		if err != nil {
			return mrworker.Record{}, err
		}
		total += n
	}
	return mrworker.Record{Key: key, Value: total}, nil
}

// Sum returns one record per word. Entries must arrive sorted.
func Sum(entries mrworker.RecordIterator, params interface{}) (mrworker.RecordIterator, error) {
	return &groups{entries: entries}, nil
}

// Tally is Sum for unsorted input: it keeps every word in memory and writes
// the totals once the input is exhausted.
func Tally(entries mrworker.RecordIterator, out mrworker.RecordWriter, params interface{}) error {
	totals := make(map[interface{}]int64)
	var order []interface{}
	for {
		r, err := entries.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		n, err := Count(r.Value)
		if err != nil {
			return err
		}
		if _, ok := totals[r.Key]; !ok {
			order = append(order, r.Key)
		}
		totals[r.Key] += n
	}
	for _, k := range order {
		if err := out.Add(k, totals[k]); err != nil {
			return err
		}
	}
	return nil
}

// Register makes the job's functions available to job specs under the
// wordcount. prefix.
func Register(r *mapreduce.Registry) {
	r.RegisterMap("wordcount.split", Split)
	r.RegisterCombiner("wordcount.combine", Combine)
	r.RegisterReducer("wordcount.sum", mapreduce.ReducerReturns(Sum))
	r.RegisterReducer("wordcount.tally", mapreduce.ReducerWrites(Tally))
}
