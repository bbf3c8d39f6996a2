package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks every field against its validate tag and reports all
// failures at once.
func (c *Config) Validate() error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Config.")
	switch fe.Tag() {
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", field, fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be at least %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be at most %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", field, fe.Param(), fe.Value())
	case "required":
		return fmt.Sprintf("%s must not be empty", field)
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
