// Package mapreduce runs one map or reduce task to completion: it reads the
// task inputs through stream chains, calls the user functions and writes
// the partitioned outputs.
package mapreduce

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"regexp"
	"runtime"
	"time"

	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/extsort"
)

var (
	ErrVersionMismatch = errors.New("mapreduce: runtime version mismatch")
	// ErrPartitionedSave is returned when partitioned output is to be saved
	// without a reduce phase to consume it.
	ErrPartitionedSave = errors.New("mapreduce: storing partitioned outputs is not supported")
	ErrMissingFunc     = errors.New("mapreduce: no function configured")
	ErrMixedInputs     = errors.New("mapreduce: mixed partitioned and unpartitioned inputs")
	ErrUnknownMode     = errors.New("mapreduce: unknown task mode")
)

// Worker executes tasks of a single job.
type Worker struct {
	Config Config
	Opener Opener
	// Sorter orders reduce input when Config.Sort is set. A DiskSorter is
	// used when nil.
	Sorter extsort.Sorter
	// External runs external program descriptors. Required only when the
	// job has MapProgram or ReduceProgram.
	External ExternalProgram
	Notifier mrworker.Notifier
	Logger   *log.Logger
	// Rand shuffles reduce inputs.
	Rand *rand.Rand
}

func NewWorker(cfg Config, opener Opener, notifier mrworker.Notifier, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.New(os.Stdout, "", log.Ldate|log.Ltime|log.Lshortfile)
	}
	return &Worker{
		Config:   cfg,
		Opener:   opener,
		Sorter:   extsort.NewDiskSorter(logger),
		Notifier: notifier,
		Logger:   logger,
		Rand:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run executes the task described by tc. Partial output written before a
// failure is left in place.
func (w *Worker) Run(ctx context.Context, tc TaskContext) (err error) {
	cfg := w.Config
	if err := CheckVersion(cfg.Version); err != nil {
		return err
	}
	mode := tc.Mode()
	if mode != mrworker.MapMode && mode != mrworker.ReduceMode {
		return fmt.Errorf("%w: %q", ErrUnknownMode, mode)
	}

	params := cfg.Params
	if files := programFiles(&cfg, mode); files != nil {
		if w.External == nil {
			return fmt.Errorf("%w: %s is an external program but the worker has no runner", ErrMissingFunc, mode)
		}
		defer func() {
			if cerr := w.External.Close(); cerr != nil {
				w.Logger.Printf("MapReduce : closing external program failed: %v", cerr)
				if err == nil {
					err = cerr
				}
			}
		}()
		params = cfg.ExtParams
		dir := tc.Path("ext." + string(mode))
		if err := w.External.Prepare(ctx, files, params, mode, dir); err != nil {
			return fmt.Errorf("prepare external %s: %w", mode, err)
		}
		if mode == mrworker.MapMode {
			cfg.Map = w.External.Map
		} else {
			cfg.Reduce = ReducerWrites(w.External.Reduce)
		}
	}

	w.Logger.Printf("MapReduce : %s task %d of job %s starting", mode, tc.TaskID(), tc.JobName())
	if mode == mrworker.MapMode {
		err = w.runMap(ctx, tc, &cfg, params)
	} else {
		err = w.runReduce(ctx, tc, &cfg, params)
	}
	if err != nil {
		w.Logger.Printf("MapReduce : %s task %d failed: %v", mode, tc.TaskID(), err)
		return fmt.Errorf("%s task %d: %w", mode, tc.TaskID(), err)
	}
	w.Logger.Printf("MapReduce : %s task %d done", mode, tc.TaskID())
	return nil
}

func programFiles(cfg *Config, mode mrworker.Mode) map[string][]byte {
	if mode == mrworker.MapMode {
		return cfg.MapProgram
	}
	return cfg.ReduceProgram
}

func (w *Worker) notify(message string) {
	if w.Notifier != nil {
		w.Notifier.Notify(message)
	}
}

func (w *Worker) sorter() extsort.Sorter {
	if w.Sorter == nil {
		w.Sorter = extsort.NewDiskSorter(w.Logger)
	}
	return w.Sorter
}

var versionRE = regexp.MustCompile(`go(\d+)\.(\d+)`)

// RuntimeVersion is the major.minor fingerprint of the running Go runtime,
// e.g. "1.23".
func RuntimeVersion() string {
	return majorMinor(runtime.Version())
}

func majorMinor(v string) string {
	m := versionRE.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	return m[1] + "." + m[2]
}

// CheckVersion fails when the job was built for another Go release than the
// one running. An empty version matches anything.
func CheckVersion(version string) error {
	if version == "" {
		return nil
	}
	if want, got := majorMinor("go"+version), RuntimeVersion(); want != got {
		return fmt.Errorf("%w: job wants %s, running %s", ErrVersionMismatch, want, got)
	}
	return nil
}
