package status

import (
	"log"

	"github.com/taskgraph/mrworker"
)

// LogNotifier writes status messages to a logger.
type LogNotifier struct {
	logger *log.Logger
	prefix string
}

func NewLogNotifier(logger *log.Logger, prefix string) *LogNotifier {
	return &LogNotifier{logger: logger, prefix: prefix}
}

func (n *LogNotifier) Notify(message string) {
	n.logger.Printf("%s%s", n.prefix, message)
}

// Multi fans a message out to several notifiers, in order.
type Multi []mrworker.Notifier

func (m Multi) Notify(message string) {
	for _, n := range m {
		if n != nil {
			n.Notify(message)
		}
	}
}
