package a2a

import "time"

/*
TaskState enumerates the mutually‑exclusive states a task may be in.
*/
type TaskState string

const (
	TaskStateSubmitted TaskState = "submitted"
	TaskStateWorking   TaskState = "working"
	TaskStateInputReq  TaskState = "input-required"
	TaskStateCompleted TaskState = "completed"
	TaskStateCanceled  TaskState = "canceled"
	TaskStateFailed    TaskState = "failed"
)

/*
IsValid reports whether the state is one of the defined task states.
*/
func (state TaskState) IsValid() bool {
	switch state {
	case TaskStateSubmitted, TaskStateWorking, TaskStateInputReq,
		TaskStateCompleted, TaskStateCanceled, TaskStateFailed:
		return true
	}

	return false
}

/*
IsTerminal reports whether no further transitions are accepted from state.
*/
func (state TaskState) IsTerminal() bool {
	switch state {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed:
		return true
	}

	return false
}

type TaskStatus struct {
	State     TaskState `json:"state"`
	Message   *Message  `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (status TaskStatus) Clone() TaskStatus {
	out := status
	out.Message = status.Message.Clone()
	return out
}
