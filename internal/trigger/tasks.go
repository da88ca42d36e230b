// Package trigger carries the low-latency "work is due" signal from the
// enqueue path to the claim scheduler over the task queue. The signal is an
// optimization only; the scheduler's tick guarantees progress without it.
package trigger

import "github.com/hibiken/asynq"

const TaskProcessDue = "receipts.process_due"

// NewProcessDueTask builds the wake task. It carries no payload; the
// scheduler discovers the due rows itself.
func NewProcessDueTask() *asynq.Task {
	return asynq.NewTask(TaskProcessDue, nil)
}
