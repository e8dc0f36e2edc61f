// internal/websocket/validation.go
package websocket

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

// Validator checks a decoded request before any auth or handler work.
type Validator[Req any] interface {
	Validate(ctx context.Context, req *Req) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc[Req any] func(ctx context.Context, req *Req) error

func (f ValidatorFunc[Req]) Validate(ctx context.Context, req *Req) error {
	return f(ctx, req)
}

// ValidationError aggregates every failed rule of one request.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// NewValidationError returns nil when messages is empty.
func NewValidationError(messages ...string) error {
	if len(messages) == 0 {
		return nil
	}
	return &ValidationError{Messages: messages}
}

var (
	structValidate     *validator.Validate
	structValidateOnce sync.Once
)

func sharedValidate() *validator.Validate {
	structValidateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "" || name == "-" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("notblank", validators.NotBlank)
		structValidate = v
	})
	return structValidate
}

// StructValidator validates a request using its `validate` struct tags.
// Extra rules run after the tags and their messages are appended.
func StructValidator[Req any](extra ...func(req *Req) []string) Validator[Req] {
	return ValidatorFunc[Req](func(ctx context.Context, req *Req) error {
		var messages []string

		if err := sharedValidate().StructCtx(ctx, req); err != nil {
			var fieldErrs validator.ValidationErrors
			if !errors.As(err, &fieldErrs) {
				return err
			}
			for _, fe := range fieldErrs {
				messages = append(messages, describeFieldError(fe))
			}
		}

		for _, rule := range extra {
			messages = append(messages, rule(req)...)
		}

		return NewValidationError(messages...)
	})
}

func describeFieldError(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
	case "uuid", "uuid4":
		return fmt.Sprintf("%s must be a valid UUID", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed the %s rule", field, fe.Tag())
	}
}
