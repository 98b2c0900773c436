package space

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	// ErrMalformedSpace is returned when a space cannot be constructed.
	ErrMalformedSpace = errors.New("malformed configuration space")

	// ErrMissingParameter is returned when a configuration omits a parameter.
	ErrMissingParameter = errors.New("missing parameter")

	// ErrUnknownParameter is returned when a configuration names a parameter
	// the space does not define.
	ErrUnknownParameter = errors.New("unknown parameter")
)

// InvalidParameterError reports a value outside a parameter's legal set.
type InvalidParameterError struct {
	Name  string
	Value int
	Legal []int
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid value %d for %s (legal: %s)", e.Value, e.Name, joinInts(e.Legal))
}

// Parameter is an ordinal dimension: a fixed ordered list of legal integer values.
type Parameter struct {
	Name    string
	Label   string // short form for progress output, e.g. "G"
	Values  []int
	Default int
}

// Index returns the position of v in the parameter's value list, or -1.
func (p Parameter) Index(v int) int {
	for i, legal := range p.Values {
		if legal == v {
			return i
		}
	}
	return -1
}

// Contains reports whether v is a legal value.
func (p Parameter) Contains(v int) bool {
	return p.Index(v) >= 0
}

func (p Parameter) validate() error {
	if p.Name == "" {
		return fmt.Errorf("%w: parameter name cannot be empty", ErrMalformedSpace)
	}
	if len(p.Values) == 0 {
		return fmt.Errorf("%w: %s has no legal values", ErrMalformedSpace, p.Name)
	}
	for i := 1; i < len(p.Values); i++ {
		if p.Values[i] <= p.Values[i-1] {
			return fmt.Errorf("%w: %s values must be strictly increasing", ErrMalformedSpace, p.Name)
		}
	}
	if !p.Contains(p.Default) {
		return fmt.Errorf("%w: %s default %d is not a legal value", ErrMalformedSpace, p.Name, p.Default)
	}
	return nil
}

// Space is an ordered, validated set of parameters. It is immutable once built.
type Space struct {
	params []Parameter
	index  map[string]int
}

// New builds a space from the given parameters, preserving their order.
func New(params ...Parameter) (*Space, error) {
	if len(params) == 0 {
		return nil, fmt.Errorf("%w: no parameters", ErrMalformedSpace)
	}

	s := &Space{
		params: make([]Parameter, len(params)),
		index:  make(map[string]int, len(params)),
	}
	for i, p := range params {
		if err := p.validate(); err != nil {
			return nil, err
		}
		if _, dup := s.index[p.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate parameter %s", ErrMalformedSpace, p.Name)
		}
		if p.Label == "" {
			p.Label = p.Name
		}
		p.Values = append([]int(nil), p.Values...)
		s.params[i] = p
		s.index[p.Name] = i
	}
	return s, nil
}

// Dim returns the number of parameters.
func (s *Space) Dim() int {
	return len(s.params)
}

// Parameters returns the parameters in declaration order.
func (s *Space) Parameters() []Parameter {
	out := make([]Parameter, len(s.params))
	for i, p := range s.params {
		p.Values = append([]int(nil), p.Values...)
		out[i] = p
	}
	return out
}

// Parameter looks up a parameter by name.
func (s *Space) Parameter(name string) (Parameter, bool) {
	i, ok := s.index[name]
	if !ok {
		return Parameter{}, false
	}
	return s.params[i], true
}

// Size returns the number of distinct configurations.
func (s *Space) Size() int {
	n := 1
	for _, p := range s.params {
		n *= len(p.Values)
	}
	return n
}

// Default returns the configuration made of every parameter's default.
func (s *Space) Default() Configuration {
	values := make([]int, len(s.params))
	for i, p := range s.params {
		values[i] = p.Default
	}
	return Configuration{space: s, values: values}
}

// NewConfiguration validates values against the space. Every parameter must
// be present and hold one of its legal values.
func (s *Space) NewConfiguration(values map[string]int) (Configuration, error) {
	for name := range values {
		if _, ok := s.index[name]; !ok {
			return Configuration{}, fmt.Errorf("%w: %s", ErrUnknownParameter, name)
		}
	}

	out := make([]int, len(s.params))
	for i, p := range s.params {
		v, ok := values[p.Name]
		if !ok {
			return Configuration{}, fmt.Errorf("%w: %s", ErrMissingParameter, p.Name)
		}
		if !p.Contains(v) {
			return Configuration{}, &InvalidParameterError{Name: p.Name, Value: v, Legal: append([]int(nil), p.Values...)}
		}
		out[i] = v
	}
	return Configuration{space: s, values: out}, nil
}

// Decode maps a point of the unit cube onto the space. Coordinate i selects
// value floor(x[i]*len) of parameter i; coordinates are clamped to [0,1].
// Missing coordinates select the default.
func (s *Space) Decode(x []float64) Configuration {
	values := make([]int, len(s.params))
	for i, p := range s.params {
		if i >= len(x) || math.IsNaN(x[i]) {
			values[i] = p.Default
			continue
		}
		values[i] = p.Values[cellIndex(x[i], len(p.Values))]
	}
	return Configuration{space: s, values: values}
}

// Encode maps a configuration to the centre of its cell in the unit cube.
func (s *Space) Encode(c Configuration) []float64 {
	x := make([]float64, len(s.params))
	for i, p := range s.params {
		v, ok := c.Get(p.Name)
		if !ok {
			v = p.Default
		}
		idx := p.Index(v)
		if idx < 0 {
			idx = p.Index(p.Default)
		}
		x[i] = (float64(idx) + 0.5) / float64(len(p.Values))
	}
	return x
}

// Describe renders the space one parameter per line, in declaration order.
func (s *Space) Describe() string {
	var b strings.Builder
	for _, p := range s.params {
		fmt.Fprintf(&b, "%s (%s): [%s] default=%d\n", p.Name, p.Label, joinInts(p.Values), p.Default)
	}
	return b.String()
}

func cellIndex(x float64, n int) int {
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	idx := int(x * float64(n))
	if idx >= n {
		idx = n - 1
	}
	return idx
}

func joinInts(vs []int) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " ")
}

// Configuration assigns one legal value to each parameter of a space.
// The zero value is empty and belongs to no space.
type Configuration struct {
	space  *Space
	values []int
}

// Assignment is one (parameter, value) pair of a configuration.
type Assignment struct {
	Name  string
	Label string
	Value int
	Width int // digits in the parameter's largest legal value
}

// Assignments returns the configuration's values in parameter order.
func (c Configuration) Assignments() []Assignment {
	if c.space == nil {
		return nil
	}
	out := make([]Assignment, len(c.values))
	for i, v := range c.values {
		p := c.space.params[i]
		out[i] = Assignment{
			Name:  p.Name,
			Label: p.Label,
			Value: v,
			Width: len(strconv.Itoa(p.Values[len(p.Values)-1])),
		}
	}
	return out
}

// Get returns the value assigned to name.
func (c Configuration) Get(name string) (int, bool) {
	if c.space == nil {
		return 0, false
	}
	i, ok := c.space.index[name]
	if !ok {
		return 0, false
	}
	return c.values[i], true
}

// Map returns a copy of the configuration keyed by parameter name.
func (c Configuration) Map() map[string]int {
	m := make(map[string]int, len(c.values))
	for _, a := range c.Assignments() {
		m[a.Name] = a.Value
	}
	return m
}

// Equal reports whether both configurations assign the same values.
func (c Configuration) Equal(other Configuration) bool {
	a, b := c.Map(), other.Map()
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}

func (c Configuration) String() string {
	as := c.Assignments()
	parts := make([]string, len(as))
	for i, a := range as {
		parts[i] = a.Name + "=" + strconv.Itoa(a.Value)
	}
	return strings.Join(parts, " ")
}
