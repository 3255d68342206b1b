package mrworker

// Notifier delivers human readable status messages about a running task.
// Delivery is best effort: implementations must not block the task on
// failures and have no way to report them back.
type Notifier interface {
	Notify(message string)
}

// NotifierFunc adapts a plain function into a Notifier.
type NotifierFunc func(message string)

func (f NotifierFunc) Notify(message string) { f(message) }
