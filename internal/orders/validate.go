package orders

import (
	"fmt"
	"strings"
	"time"

	apperrors "fleet-workflow/internal/common/errors"
	"fleet-workflow/internal/permission"
)

func flagged(caps []permission.Capability, changed bool, c permission.Capability) []permission.Capability {
	if changed {
		return append(caps, c)
	}
	return caps
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return apperrors.NewValidationError(field + " is required")
	}
	return nil
}

func positive(field string, value int64) error {
	if value <= 0 {
		return apperrors.NewValidationError(fmt.Sprintf("%s must be positive, got %d", field, value))
	}
	return nil
}

func nonNegative(field string, value int64) error {
	if value < 0 {
		return apperrors.NewValidationError(fmt.Sprintf("%s must not be negative, got %d", field, value))
	}
	return nil
}

func notZeroTime(field string, value time.Time) error {
	if value.IsZero() {
		return apperrors.NewValidationError(field + " is required")
	}
	return nil
}
