package mapreduce

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/partition"
	"github.com/taskgraph/mrworker/status"
)

// reduceInputs picks the locations a reduce task reads. When the inputs
// come partitioned from a map phase, only this task's partition is read
// unless merge is set.
func reduceInputs(locs []mrworker.Location, taskID int, merge bool) ([]mrworker.Location, error) {
	partitioned := 0
	for _, l := range locs {
		if l.Partitioned {
			partitioned++
		}
	}
	if partitioned != 0 && partitioned != len(locs) {
		return nil, fmt.Errorf("%w: %d of %d inputs partitioned", ErrMixedInputs, partitioned, len(locs))
	}
	if partitioned == 0 || merge {
		return locs, nil
	}
	want := strconv.Itoa(taskID)
	var kept []mrworker.Location
	for _, l := range locs {
		if l.Partition == want {
			kept = append(kept, l)
		}
	}
	return kept, nil
}

func (w *Worker) shuffled(locs []mrworker.Location) []mrworker.Location {
	out := append([]mrworker.Location(nil), locs...)
	if w.Rand != nil {
		w.Rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	}
	return out
}

func (w *Worker) runReduce(ctx context.Context, tc TaskContext, cfg *Config, params interface{}) (err error) {
	red := cfg.Reduce
	if red == nil {
		return ErrMissingFunc
	}
	switch {
	case red.Variant == ReturnsRecords && red.Returns != nil:
	case red.Variant == WritesDirectly && red.Writes != nil:
	default:
		return fmt.Errorf("%w: reduce variant %s has no function", ErrMissingFunc, red.Variant)
	}

	locs, err := reduceInputs(tc.Inputs(), tc.TaskID(), cfg.MergePartitions)
	if err != nil {
		return err
	}
	in := newSerialInput(w.shuffled(locs), w.inputOpener(ctx, cfg.ReduceInputStream, cfg.ReduceReader, params))
	var (
		ordered mrworker.RecordIterator = in
		sorted  io.Closer
		out     *outputs
	)
	defer func() {
		var errs []error
		if sorted != nil {
			errs = append(errs, sorted.Close())
		}
		errs = append(errs, in.Close())
		if out != nil {
			errs = append(errs, out.Close())
		}
		for _, e := range errs {
			if err == nil && e != nil {
				err = e
			}
		}
	}()

	if cfg.Sort {
		it, err := w.sorter().Sort(in, tc.Path("sort.dl"), cfg.SortBufferSize)
		if err != nil {
			return fmt.Errorf("sort: %w", err)
		}
		if c, ok := it.(io.Closer); ok {
			sorted = c
		}
		ordered = it
	}
	entries := status.NewReporter(ordered, cfg.StatusInterval, "%d entries reduced", w.Notifier)

	out = newOutputs(tc, w.outputOpener(ctx, cfg.ReduceOutputStream, params))
	sink, err := out.get(partition.None)
	if err != nil {
		return err
	}
	if init := cfg.ReduceInit; init != nil {
		if err := init(entries, params, infoOf(tc)); err != nil {
			return err
		}
	}
	if red.Variant == WritesDirectly {
		return red.Writes(entries, sink, params)
	}
	results, err := red.Returns(entries, params)
	if err != nil {
		return err
	}
	return mrworker.Drain(results, sink)
}
