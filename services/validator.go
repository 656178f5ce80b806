package services

import (
	"fmt"
	"nexus-mail/errors"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validateCommand runs the struct tags and folds every failure into ErrValidation.
func validateCommand(cmd any) error {
	if err := validate.Struct(cmd); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	return nil
}

// Clock is swapped in tests to get distinct, ordered timestamps.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
