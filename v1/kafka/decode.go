package kafka

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrRejected marks a message that can never be processed. The router logs
// and commits it without retrying.
var ErrRejected = errors.New("kafka: message rejected")

var validate = validator.New()

// Decode unmarshals the message value into v and validates it with its
// `validate` struct tags. Only a single JSON encoding is accepted: a value that
// is itself a JSON string is rejected, never unwrapped.
func Decode(msg Message, v any) error {
	body := bytes.TrimSpace(msg.Value)
	if len(body) == 0 {
		return fmt.Errorf("%w: empty payload on %s", ErrRejected, msg.Topic)
	}
	if body[0] == '"' {
		return fmt.Errorf("%w: double-encoded payload on %s", ErrRejected, msg.Topic)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid JSON on %s: %v", ErrRejected, msg.Topic, err)
	}

	if err := validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// v is not a struct; nothing to validate
			return nil
		}
		return fmt.Errorf("%w: invalid payload on %s: %v", ErrRejected, msg.Topic, err)
	}
	return nil
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. The router commits the message
// instead of sending it to the dead-letter topic.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent or wraps ErrRejected.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p) || errors.Is(err, ErrRejected)
}
