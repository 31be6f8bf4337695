package core

import (
	"encoding/json"
	"fmt"
)

type Unit struct{}

// CommandError carries the status a failed request maps to across the
// mediator boundary.
type CommandError struct {
	Payload    interface{}
	StatusCode int
	Reason     *string
}

type CommandErrorOption func(*CommandError)

func WithReason(reason string) CommandErrorOption {
	return func(e *CommandError) {
		e.Reason = &reason
	}
}

func NewCommandError(statusCode int, payload interface{}, opts ...CommandErrorOption) CommandError {
	e := CommandError{
		StatusCode: statusCode,
		Payload:    payload,
	}

	for _, opt := range opts {
		opt(&e)
	}

	return e
}

func (r CommandError) Error() string {
	if err, ok := r.Payload.(error); ok {
		if r.Reason != nil {
			return fmt.Sprintf("%s: %s", *r.Reason, err.Error())
		}
		return err.Error()
	}

	var values struct {
		Payload    interface{}
		StatusCode int
		Reason     string
	}

	values.Payload = r.Payload
	values.StatusCode = r.StatusCode

	if r.Reason != nil {
		values.Reason = *r.Reason
	}

	return fmt.Sprintf("%+v", values)
}

func (r CommandError) Unwrap() error {
	if err, ok := r.Payload.(error); ok {
		return err
	}
	return nil
}

func (r CommandError) MarshalJSON() ([]byte, error) {
	var body struct {
		Status int         `json:"status"`
		Error  interface{} `json:"error,omitempty"`
		Reason string      `json:"reason,omitempty"`
	}

	body.Status = r.StatusCode
	if r.Reason != nil {
		body.Reason = *r.Reason
	}

	switch payload := r.Payload.(type) {
	case nil:
	case ValidationError:
		body.Error = Map(payload.ValidationErrors, func(err error) string { return err.Error() })
	case error:
		body.Error = payload.Error()
	default:
		body.Error = payload
	}

	return json.Marshal(body)
}
