package instrument

import (
	"errors"
	"fmt"
	"sync"

	"github.com/cverdier/AcqGo/internal/debug"
	"github.com/cverdier/AcqGo/internal/params"
)

// Errors returned by the typed property accessors. Both are local to
// the failing call: instrument state is never affected.
var (
	// ErrNotFound means the property key is not configured on the instrument.
	ErrNotFound = errors.New("instrument property not found")
	// ErrTypeMismatch means the stored value cannot be coerced to the
	// requested type.
	ErrTypeMismatch = errors.New("instrument property type mismatch")
)

// Instrument is the typed key/value protocol to the underlying
// microscope or camera electronics. Keys are plain strings; values are
// one of bool, int, float64, string or params.FloatPoint. The
// acquisition controller passes these through without interpreting
// property semantics.
//
// This is the abstract boundary: a real implementation talks to vendor
// firmware, the InMemory one below serves development and tests.
type Instrument interface {
	GetPropertyAsBool(name string) (bool, error)
	GetPropertyAsInt(name string) (int, error)
	GetPropertyAsFloat(name string) (float64, error)
	GetPropertyAsStr(name string) (string, error)
	GetPropertyAsFloatPoint(name string) (params.FloatPoint, error)

	SetPropertyAsBool(name string, value bool) error
	SetPropertyAsInt(name string, value int) error
	SetPropertyAsFloat(name string, value float64) error
	SetPropertyAsStr(name string, value string) error
	SetPropertyAsFloatPoint(name string, value params.FloatPoint) error
}

// InMemory is an Instrument backed by a plain map. Used for development
// on machines without instrument hardware and for tests.
type InMemory struct {
	mu    sync.Mutex
	props map[string]any
}

// NewInMemory creates an in-memory instrument seeded with the given
// properties (may be nil).
func NewInMemory(seed map[string]any) *InMemory {
	props := make(map[string]any, len(seed))
	for k, v := range seed {
		props[k] = v
	}
	return &InMemory{props: props}
}

func (m *InMemory) get(name string) (any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.props[name]
	if !ok {
		debug.Trace("property %q not present", name)
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	debug.Prop("get", name, v)
	return v, nil
}

func (m *InMemory) set(name string, value any) error {
	m.mu.Lock()
	m.props[name] = value
	m.mu.Unlock()
	debug.Prop("set", name, value)
	return nil
}

func (m *InMemory) GetPropertyAsBool(name string) (bool, error) {
	v, err := m.get(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %q holds %T, want bool", ErrTypeMismatch, name, v)
	}
	return b, nil
}

// GetPropertyAsInt coerces a stored float64 with no fractional part;
// any other non-int type is a mismatch.
func (m *InMemory) GetPropertyAsInt(name string) (int, error) {
	v, err := m.get(name)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case int:
		return t, nil
	case float64:
		if t == float64(int(t)) {
			return int(t), nil
		}
	}
	return 0, fmt.Errorf("%w: %q holds %T, want int", ErrTypeMismatch, name, v)
}

// GetPropertyAsFloat coerces stored ints to float64.
func (m *InMemory) GetPropertyAsFloat(name string) (float64, error) {
	v, err := m.get(name)
	if err != nil {
		return 0, err
	}
	switch t := v.(type) {
	case float64:
		return t, nil
	case int:
		return float64(t), nil
	}
	return 0, fmt.Errorf("%w: %q holds %T, want float", ErrTypeMismatch, name, v)
}

func (m *InMemory) GetPropertyAsStr(name string) (string, error) {
	v, err := m.get(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %q holds %T, want string", ErrTypeMismatch, name, v)
	}
	return s, nil
}

func (m *InMemory) GetPropertyAsFloatPoint(name string) (params.FloatPoint, error) {
	v, err := m.get(name)
	if err != nil {
		return params.FloatPoint{}, err
	}
	p, ok := v.(params.FloatPoint)
	if !ok {
		return params.FloatPoint{}, fmt.Errorf("%w: %q holds %T, want float point", ErrTypeMismatch, name, v)
	}
	return p, nil
}

func (m *InMemory) SetPropertyAsBool(name string, value bool) error {
	return m.set(name, value)
}

func (m *InMemory) SetPropertyAsInt(name string, value int) error {
	return m.set(name, value)
}

func (m *InMemory) SetPropertyAsFloat(name string, value float64) error {
	return m.set(name, value)
}

func (m *InMemory) SetPropertyAsStr(name string, value string) error {
	return m.set(name, value)
}

func (m *InMemory) SetPropertyAsFloatPoint(name string, value params.FloatPoint) error {
	return m.set(name, value)
}
