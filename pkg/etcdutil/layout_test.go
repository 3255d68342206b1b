package etcdutil

import "testing"

func TestLayout(t *testing.T) {
	if got := TaskStatusPath("wc", "map", 3); got != "/wc/tasks/map/3/status" {
		t.Fatalf("TaskStatusPath = %s", got)
	}
	if got := TaskOutputsPath("wc", "reduce", 0); got != "/wc/tasks/reduce/0/outputs" {
		t.Fatalf("TaskOutputsPath = %s", got)
	}
}
