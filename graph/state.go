package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

type (
	// EmitterState holds the fields shared by all emitting nodes. Embed it in
	// the state struct of a class.
	EmitterState struct {
		Enabled bool `json:"enabled"`
	}

	// ChannelsState is embedded by nodes that produce an explicit number of
	// channels.
	ChannelsState struct {
		Channels int `json:"channels" validate:"gte=1"`
	}

	// Stateful stores the state of a node. Embed it in node types to get the
	// State, SetState and Enabled methods of Node. S must be a struct; its
	// fields are validated with "validate" struct tags and addressed by their
	// json names.
	Stateful[S any] struct {
		s       S
		enabled bool
	}

	enabler interface{ IsEnabled() bool }
)

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// DefaultEmitter is the emitter state of a freshly created node.
func DefaultEmitter() EmitterState { return EmitterState{Enabled: true} }

func (s EmitterState) IsEnabled() bool { return s.Enabled }

// WithState returns a Stateful holding s. s is assumed to be valid.
func WithState[S any](s S) Stateful[S] {
	return Stateful[S]{s: s, enabled: enabledOf(s)}
}

func enabledOf(s any) bool {
	if e, ok := s.(enabler); ok {
		return e.IsEnabled()
	}
	return true
}

// Get returns the current state.
func (s *Stateful[S]) Get() S { return s.s }

func (s *Stateful[S]) State() any { return s.s }

func (s *Stateful[S]) Enabled() bool { return s.enabled }

// SetState replaces the state as a whole. The new state must be of the exact
// type S and pass validation; otherwise the current state is kept.
func (s *Stateful[S]) SetState(v any) error {
	n, ok := v.(S)
	if !ok {
		return &BadStateSchemaError{Want: schemaName(s.s), Got: schemaName(v)}
	}
	if err := validateState(n); err != nil {
		return err
	}
	s.s = n
	s.enabled = enabledOf(n)
	return nil
}

func schemaName(v any) string {
	return fmt.Sprintf("%T", v)
}

func validateState(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		reason := fe.Tag()
		if fe.Param() != "" {
			reason += "=" + fe.Param()
		}
		return &BadStateValueError{Schema: schemaName(v), Key: fe.Field(), Value: fe.Value(), Reason: reason}
	}
	return fmt.Errorf("cannot validate %s: %w", schemaName(v), err)
}

// StateValues returns the state of a node as a map from field name to JSON
// value.
func StateValues(n Node) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(n.State())
	if err != nil {
		return nil, fmt.Errorf("cannot encode state %s: %w", schemaName(n.State()), err)
	}
	var values map[string]json.RawMessage
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("cannot decode state %s: %w", schemaName(n.State()), err)
	}
	return values, nil
}

// StateKeys returns the sorted field names of the state of a node.
func StateKeys(n Node) []string {
	values, err := StateValues(n)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ApplyValues updates the named fields of the state of a node. Either every
// field is applied or none is; on success the previous values of all fields
// are returned. class is only used in error messages.
func ApplyValues(class string, n Node, values map[string]json.RawMessage) (map[string]json.RawMessage, error) {
	prev, err := StateValues(n)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		if _, ok := prev[k]; !ok {
			return nil, &BadPropertyError{Class: class, Key: k, Options: StateKeys(n)}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	// decode into a deep copy, one field at a time, to attribute errors
	next := reflect.New(reflect.TypeOf(n.State()))
	base, err := json.Marshal(n.State())
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(base, next.Interface()); err != nil {
		return nil, err
	}
	for _, k := range keys {
		field, err := json.Marshal(map[string]json.RawMessage{k: values[k]})
		if err != nil {
			return nil, &BadStateValueError{Schema: schemaName(n.State()), Key: k, Value: string(values[k]), Reason: err.Error()}
		}
		if err := json.Unmarshal(field, next.Interface()); err != nil {
			return nil, &BadStateValueError{Schema: schemaName(n.State()), Key: k, Value: string(values[k]), Reason: err.Error()}
		}
	}
	if err := n.SetState(next.Elem().Interface()); err != nil {
		return nil, err
	}
	return prev, nil
}
