package mrworker

// Mode tells which phase a task runs.
type Mode string

const (
	MapMode    Mode = "map"
	ReduceMode Mode = "reduce"
)

// SizeUnknown marks a resource whose length can't be told up front.
const SizeUnknown int64 = -1

// Location references one input of a task. Partitioned inputs were written by
// a previous map phase and carry the label of the partition they belong to.
type Location struct {
	URL         string `json:"url"`
	Size        int64  `json:"size"`
	Partition   string `json:"partition,omitempty"`
	Partitioned bool   `json:"partitioned,omitempty"`
}
