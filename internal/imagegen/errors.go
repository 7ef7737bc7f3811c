package imagegen

import "fmt"

// TaskError represents a synthesis task that could not produce an image
type TaskError struct {
	TaskID     string
	Status     string // Task status, or SUBMIT when the task was never created
	HTTPStatus int
	Code       string
	Message    string
	Cause      error
}

func (e *TaskError) Error() string {
	msg := fmt.Sprintf("image task %s", e.Status)
	if e.TaskID != "" {
		msg = fmt.Sprintf("image task %s %s", e.TaskID, e.Status)
	}
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.HTTPStatus)
	}
	if e.Code != "" {
		msg += ": " + e.Code
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(": %v", e.Cause)
	}
	return msg
}

func (e *TaskError) Unwrap() error {
	return e.Cause
}
