// Package status reports task progress. Reporter counts records as they are
// pulled through a task; the notifiers deliver the resulting messages to a
// log, to etcd or to a gRPC collector.
package status

import (
	"fmt"
	"io"

	"github.com/taskgraph/mrworker"
)

// Reporter passes records through unchanged, emitting a message every
// interval records and a final one once the wrapped iterator is exhausted.
type Reporter struct {
	it       mrworker.RecordIterator
	interval int
	template string
	notifier mrworker.Notifier
	count    int
	done     bool
}

// NewReporter wraps it. template gets the running count through fmt, e.g.
// "%d entries mapped". An interval of 0 disables the periodic messages.
func NewReporter(it mrworker.RecordIterator, interval int, template string, n mrworker.Notifier) *Reporter {
	return &Reporter{it: it, interval: interval, template: template, notifier: n}
}

func (r *Reporter) Next() (mrworker.Record, error) {
	if r.done {
		return mrworker.Record{}, io.EOF
	}
	rec, err := r.it.Next()
	if err == io.EOF {
		r.done = true
		r.notify("Done: " + fmt.Sprintf(r.template, r.count))
		return rec, err
	}
	if err != nil {
		return rec, err
	}
	r.count++
	if r.interval > 0 && r.count%r.interval == 0 {
		r.notify(fmt.Sprintf(r.template, r.count))
	}
	return rec, nil
}

// Count is the number of records passed through so far.
func (r *Reporter) Count() int { return r.count }

func (r *Reporter) notify(msg string) {
	if r.notifier != nil {
		r.notifier.Notify(msg)
	}
}
