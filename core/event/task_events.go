package event

// TaskStarted is published when a task begins executing on a session.
type TaskStarted struct {
	baseSessionEvent
	TaskName string
}

func NewTaskStarted(sessionID, taskName string) *TaskStarted {
	return &TaskStarted{
		baseSessionEvent: baseSessionEvent{sessionID: sessionID},
		TaskName:         taskName,
	}
}

func (e *TaskStarted) EventName() string {
	return "TaskStarted"
}

// StopReason indicates why a task stopped.
type StopReason int

const (
	// StopReasonNormal indicates the task completed normally.
	StopReasonNormal StopReason = iota
	// StopReasonManual indicates the task was stopped by the caller.
	StopReasonManual
	// StopReasonError indicates the task stopped due to an error.
	StopReasonError
	// StopReasonSessionClosed indicates the task stopped because its session closed.
	StopReasonSessionClosed
)

func (r StopReason) String() string {
	switch r {
	case StopReasonNormal:
		return "Normal"
	case StopReasonManual:
		return "Manual"
	case StopReasonError:
		return "Error"
	case StopReasonSessionClosed:
		return "SessionClosed"
	default:
		return "Unknown"
	}
}

// TaskStopped is published when a task stops executing.
type TaskStopped struct {
	baseSessionEvent
	TaskName string
	Reason   StopReason
	Error    error // Non-nil if Reason is StopReasonError
}

func NewTaskStopped(sessionID, taskName string, reason StopReason, err error) *TaskStopped {
	return &TaskStopped{
		baseSessionEvent: baseSessionEvent{sessionID: sessionID},
		TaskName:         taskName,
		Reason:           reason,
		Error:            err,
	}
}

func (e *TaskStopped) EventName() string {
	return "TaskStopped"
}

// TaskStepExecuted is published after each task step completes.
type TaskStepExecuted struct {
	baseSessionEvent
	StepIndex int
	Action    string
}

func NewTaskStepExecuted(sessionID string, stepIndex int, action string) *TaskStepExecuted {
	return &TaskStepExecuted{
		baseSessionEvent: baseSessionEvent{sessionID: sessionID},
		StepIndex:        stepIndex,
		Action:           action,
	}
}

func (e *TaskStepExecuted) EventName() string {
	return "TaskStepExecuted"
}
