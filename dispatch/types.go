package dispatch

import (
	"github.com/utkarsh5026/taskprof/pool"
)

// TaskDescriptor is a unit of work submitted by a caller.
type TaskDescriptor struct {
	// ID must be unique among tasks in flight.
	ID        string
	Operation string
	Payload   any
	// Priority is recorded on the trace. It does not affect ordering.
	Priority int
	// TimeoutMs bounds the execution when positive.
	TimeoutMs int64
	PoolClass pool.Class
}

// ThreadInfo identifies where a task ran.
type ThreadInfo struct {
	PoolClass pool.Class `json:"pool_class"`
	WorkerID  string     `json:"worker_id,omitempty"`
	// CoreID is set only when the worker was pinned to a core.
	CoreID *int `json:"core_id,omitempty"`
}

// TaskResult is produced exactly once per descriptor. Exactly one of Result
// and Error is meaningful, depending on Success.
type TaskResult struct {
	ID              string     `json:"id"`
	Success         bool       `json:"success"`
	Result          any        `json:"result,omitempty"`
	Error           error      `json:"-"`
	ExecutionTimeMs float64    `json:"execution_time_ms"`
	ThreadInfo      ThreadInfo `json:"thread_info"`
}

func threadInfoOf(class pool.Class, w pool.WorkerInfo) ThreadInfo {
	info := ThreadInfo{PoolClass: class, WorkerID: w.WorkerID}
	if w.Pinned {
		core := w.CoreID
		info.CoreID = &core
	}
	return info
}

func failedResult(task TaskDescriptor, err error) TaskResult {
	return TaskResult{
		ID:         task.ID,
		Error:      err,
		ThreadInfo: ThreadInfo{PoolClass: task.PoolClass},
	}
}
