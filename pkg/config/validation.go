package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate

	// JVM -Xmx syntax: digits with an optional k, m, g or t suffix.
	heapSizePattern = regexp.MustCompile(`^[1-9][0-9]*[kKmMgGtT]?$`)
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		_ = validate.RegisterValidation("heapsize", func(fl validator.FieldLevel) bool {
			return heapSizePattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Validate checks cfg against its struct tags. Every failing field is
// reported, one per line, as "<namespace>: failed '<tag>' (value)".
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("configuration is nil")
	}

	err := getValidator().Struct(cfg)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msg := fmt.Sprintf("%s: failed '%s'", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg = fmt.Sprintf("%s: failed '%s=%s'", fe.Namespace(), fe.Tag(), fe.Param())
		}
		msgs = append(msgs, fmt.Sprintf("%s (value: %v)", msg, fe.Value()))
	}
	return errors.New(strings.Join(msgs, "\n"))
}
