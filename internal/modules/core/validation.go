package core

import (
	"context"
	"errors"
	"strings"

	"github.com/eskrenkovic/mediator-go"
)

type Validator interface {
	Validate() error
}

type ValidationError struct {
	ValidationErrors []error
}

func NewValidationError(errs ...error) ValidationError {
	return ValidationError{ValidationErrors: errs}
}

func (e ValidationError) Error() string {
	var b strings.Builder
	for i, err := range e.ValidationErrors {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e ValidationError) Unwrap() []error {
	return e.ValidationErrors
}

var _ mediator.PipelineBehavior = (*RequestValidationBehavior)(nil)

type RequestValidationBehavior struct{}

func (b *RequestValidationBehavior) Handle(
	ctx context.Context,
	request interface{},
	next mediator.RequestHandlerFunc,
) (interface{}, error) {
	if request, ok := request.(Validator); ok {
		if err := request.Validate(); err != nil {
			var validationErr ValidationError
			if !errors.As(err, &validationErr) {
				validationErr = NewValidationError(err)
			}
			return nil, NewCommandError(400, validationErr, WithReason("request validation failed"))
		}
	}

	return next(ctx, request)
}
