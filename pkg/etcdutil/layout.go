package etcdutil

import (
	"path"
	"strconv"
)

// The directory layout a worker writes to in etcd:
//   /{job}/tasks/{mode}/{taskID}/status -> latest status message of the task
//   /{job}/tasks/{mode}/{taskID}/outputs -> output index, set once the task committed

const (
	TasksDir   = "tasks"
	StatusNode = "status"
	OutputNode = "outputs"
)

func TaskDir(job, mode string, taskID int) string {
	return path.Join("/", job, TasksDir, mode, strconv.Itoa(taskID))
}

func TaskStatusPath(job, mode string, taskID int) string {
	return path.Join(TaskDir(job, mode, taskID), StatusNode)
}

func TaskOutputsPath(job, mode string, taskID int) string {
	return path.Join(TaskDir(job, mode, taskID), OutputNode)
}
