package mapreduce

import (
	"context"
	"fmt"

	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/stream"
)

// FormatSize renders a byte count the way status messages show it, e.g.
// "1.5MB".
func FormatSize(size int64) string {
	if size < 0 {
		return "of unknown size"
	}
	num := float64(size)
	for _, unit := range []string{"bytes", "KB", "MB", "GB"} {
		if num < 1024 {
			return fmt.Sprintf("%3.1f%s", num, unit)
		}
		num /= 1024
	}
	return fmt.Sprintf("%3.1f%s", num, "TB")
}

// openHook is the last input stage. It only reports the input size.
func (w *Worker) openHook() stream.Stage {
	return stream.StageFunc(func(fd stream.Handle, size int64, url string) (stream.Handle, int64, string, error) {
		w.notify("Input is " + FormatSize(size))
		return fd, size, url, nil
	})
}

// inputOpener returns a function opening one input location through the
// input stages, then the reader, then the open hook.
func (w *Worker) inputOpener(ctx context.Context, streams []stream.Stage, reader stream.Stage, params interface{}) func(mrworker.Location) (*stream.Chain, error) {
	stages := make([]stream.Stage, 0, len(streams)+2)
	stages = append(stages, streams...)
	stages = append(stages, reader, w.openHook())
	return func(loc mrworker.Location) (*stream.Chain, error) {
		raw, size, err := w.Opener.OpenReader(ctx, loc.URL)
		if err != nil {
			return nil, fmt.Errorf("open input %s: %w", loc.URL, err)
		}
		if size == mrworker.SizeUnknown && loc.Size >= 0 {
			size = loc.Size
		}
		return stream.Open(raw, size, loc.URL, stages, params)
	}
}

// outputOpener returns the OpenFunc handed to TaskContext.Output.
func (w *Worker) outputOpener(ctx context.Context, streams []stream.Stage, params interface{}) OpenFunc {
	return func(url string) (*stream.Chain, error) {
		raw, err := w.Opener.OpenWriter(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("open output %s: %w", url, err)
		}
		return stream.Open(raw, mrworker.SizeUnknown, url, streams, params)
	}
}
