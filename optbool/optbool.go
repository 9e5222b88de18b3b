// Package optbool provides a tri-state setting that is forced on, forced off,
// or left to an automatic default.
//
// The integer encoding matches the REDO_LOG, REDO_COLOR and REDO_PRETTY
// environment variables: 0 is Off, 1 is Auto, 2 is On.
package optbool

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// OptionalBool is a boolean that may be left to an automatic default. The
// zero value is Auto. Use Int and FromInt for the environment encoding.
type OptionalBool uint8

const (
	Auto OptionalBool = iota
	Off
	On
)

// FromInt decodes the environment integer encoding. Values other than 0 and
// 1 are treated as On.
func FromInt(n int64) OptionalBool {
	switch n {
	case 0:
		return Off
	case 1:
		return Auto
	default:
		return On
	}
}

// FromPtr maps nil to Auto and a non-nil pointer to On or Off.
func FromPtr(b *bool) OptionalBool {
	if b == nil {
		return Auto
	}
	if *b {
		return On
	}
	return Off
}

// Int returns the environment integer encoding.
func (o OptionalBool) Int() int64 {
	switch o {
	case Off:
		return 0
	case Auto:
		return 1
	default:
		return 2
	}
}

// Ptr is the inverse of FromPtr.
func (o OptionalBool) Ptr() *bool {
	var b bool
	switch o {
	case On:
		b = true
	case Off:
		b = false
	default:
		return nil
	}
	return &b
}

// UnwrapOr returns the forced value, or def when Auto.
func (o OptionalBool) UnwrapOr(def bool) bool {
	switch o {
	case On:
		return true
	case Off:
		return false
	default:
		return def
	}
}

// UnwrapOrElse returns the forced value, or calls f when Auto. f is not
// called for On or Off.
func (o OptionalBool) UnwrapOrElse(f func() bool) bool {
	switch o {
	case On:
		return true
	case Off:
		return false
	default:
		return f()
	}
}

func (o OptionalBool) String() string {
	switch o {
	case Off:
		return "false"
	case Auto:
		return "auto"
	default:
		return "true"
	}
}

// Parse accepts true/false/auto, on/off, yes/no and the integer codes 0, 1
// and 2. Matching is case-insensitive; the empty string is Auto.
func Parse(s string) (OptionalBool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return Auto, nil
	case "true", "on", "yes":
		return On, nil
	case "false", "off", "no":
		return Off, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 || n > 2 {
		return Auto, fmt.Errorf("invalid tri-state value %q (want true, false or auto)", s)
	}
	return FromInt(n), nil
}

// Set implements pflag.Value.
func (o *OptionalBool) Set(s string) error {
	v, err := Parse(s)
	if err != nil {
		return err
	}
	*o = v
	return nil
}

// Type implements pflag.Value.
func (o *OptionalBool) Type() string {
	return "true|false|auto"
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *OptionalBool) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: tri-state value must be a scalar", value.Line)
	}
	return o.Set(value.Value)
}

// MarshalYAML implements yaml.Marshaler.
func (o OptionalBool) MarshalYAML() (any, error) {
	return o.String(), nil
}
