package mapreduce

import (
	"context"
	"io"

	"github.com/taskgraph/mrworker/partition"
	"github.com/taskgraph/mrworker/status"
)

func (w *Worker) runMap(ctx context.Context, tc TaskContext, cfg *Config, params interface{}) (err error) {
	if cfg.Map == nil {
		return ErrMissingFunc
	}
	if cfg.Save && cfg.Partitions > 0 && !cfg.hasReduce() {
		return ErrPartitionedSave
	}

	in := newSerialInput(tc.Inputs(), w.inputOpener(ctx, cfg.MapInputStream, cfg.MapReader, params))
	out := newOutputs(tc, w.outputOpener(ctx, cfg.MapOutputStream, params))
	defer func() {
		ierr, oerr := in.Close(), out.Close()
		if err == nil {
			err = ierr
		}
		if err == nil {
			err = oerr
		}
	}()

	entries := status.NewReporter(in, cfg.StatusInterval, "%d entries mapped", w.Notifier)
	stage := &partition.Stage{
		Partitions: cfg.Partitions,
		Partition:  cfg.Partition,
		Combiner:   cfg.Combiner,
		Params:     params,
		Output:     out.get,
	}
	if init := cfg.MapInit; init != nil {
		if err := init(entries, params, infoOf(tc)); err != nil {
			return err
		}
	}
	for {
		entry, err := entries.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		records, err := cfg.Map(entry, params)
		if err != nil {
			return err
		}
		for _, r := range records {
			if err := stage.Add(r.Key, r.Value); err != nil {
				return err
			}
		}
	}
	if cfg.Combiner != nil {
		return stage.Flush()
	}
	return nil
}
