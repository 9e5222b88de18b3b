package config

import "fmt"

// ValidationError describes a single validation problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks a Config for errors and returns all problems found.
func Validate(cfg *Config) []ValidationError {
	if cfg == nil {
		return nil
	}

	var errs []ValidationError
	levels := []struct {
		field string
		v     *int
	}{
		{"debug", cfg.Debug},
		{"verbose", cfg.Verbose},
		{"xtrace", cfg.XTrace},
	}
	for _, l := range levels {
		if l.v != nil && *l.v < 0 {
			errs = append(errs, ValidationError{
				Field:   l.field,
				Message: fmt.Sprintf("level must not be negative, got %d", *l.v),
			})
		}
	}

	return errs
}
