package mapreduce

import (
	"context"
	"io"

	"github.com/taskgraph/mrworker"
	"github.com/taskgraph/mrworker/stream"
)

// OpenFunc builds the output chain for url.
type OpenFunc func(url string) (*stream.Chain, error)

// TaskContext is everything a Worker needs to know about the task it runs.
type TaskContext interface {
	JobName() string
	Mode() mrworker.Mode
	TaskID() int
	// Inputs lists the locations assigned to the task.
	Inputs() []mrworker.Location
	// Output picks the location of the output for partition part and opens
	// it with open. part is partition.None for unpartitioned output. The
	// worker calls Output once per part.
	Output(part string, open OpenFunc) (*stream.Chain, error)
	// Path returns a local scratch path for name, private to the task.
	Path(name string) string
}

// Opener fetches raw resources by url.
type Opener interface {
	// OpenReader returns the resource and its size, mrworker.SizeUnknown if
	// the backend can't tell.
	OpenReader(ctx context.Context, url string) (io.ReadCloser, int64, error)
	OpenWriter(ctx context.Context, url string) (io.WriteCloser, error)
}

// ExternalProgram runs map or reduce in a separate executable.
type ExternalProgram interface {
	// Prepare installs files under dir and starts the program for mode.
	Prepare(ctx context.Context, files map[string][]byte, params interface{}, mode mrworker.Mode, dir string) error
	Map(entry mrworker.Record, params interface{}) ([]mrworker.Record, error)
	Reduce(entries mrworker.RecordIterator, out mrworker.RecordWriter, params interface{}) error
	// Close stops the program and removes what Prepare installed. It is
	// safe to call when Prepare was never called or failed.
	Close() error
}

func infoOf(tc TaskContext) TaskInfo {
	return TaskInfo{JobName: tc.JobName(), Mode: tc.Mode(), TaskID: tc.TaskID()}
}
