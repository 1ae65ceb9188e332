package fiber

import (
	"fmt"
	"strings"
)

// Type selects the direction field a fiber follows.
type Type int

const (
	TypeUnknown Type = iota
	// TypeEvec0 follows the major eigenvector.
	TypeEvec0
	// TypeEvec1 follows the medium eigenvector.
	TypeEvec1
	// TypeEvec2 follows the minor eigenvector.
	TypeEvec2
	// TypeTensorLine blends the major eigenvector with the incoming
	// direction and its deflection by the tensor, weighted by linear
	// anisotropy and the punct parameter.
	TypeTensorLine
	// TypePureLine follows the deflection of the incoming direction by the
	// tensor alone.
	TypePureLine
	typeLast
)

var typeNames = [...]string{
	TypeUnknown:    "unknown",
	TypeEvec0:      "evec0",
	TypeEvec1:      "evec1",
	TypeEvec2:      "evec2",
	TypeTensorLine: "tensorline",
	TypePureLine:   "pureline",
}

func (t Type) String() string {
	if t < 0 || t >= typeLast {
		return fmt.Sprintf("Type(%d)", int(t))
	}
	return typeNames[t]
}

// ParseType looks a fiber type up by name.
func ParseType(name string) (Type, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for t := TypeEvec0; t < typeLast; t++ {
		if typeNames[t] == name {
			return t, nil
		}
	}
	return TypeUnknown, fmt.Errorf("unknown fiber type %q", name)
}

// evecIndex returns the eigenvector an eigenvector-following type uses,
// and the major one for the others.
func (t Type) evecIndex() int {
	switch t {
	case TypeEvec1:
		return 1
	case TypeEvec2:
		return 2
	}
	return 0
}

// Integration selects the integration scheme.
type Integration int

const (
	IntegrationUnknown Integration = iota
	// IntegrationEuler takes one probe per step.
	IntegrationEuler
	// IntegrationRK4 is the classical fourth-order Runge-Kutta scheme,
	// four probes per step.
	IntegrationRK4
	integrationLast
)

var integrationNames = [...]string{
	IntegrationUnknown: "unknown",
	IntegrationEuler:   "euler",
	IntegrationRK4:     "rk4",
}

func (i Integration) String() string {
	if i < 0 || i >= integrationLast {
		return fmt.Sprintf("Integration(%d)", int(i))
	}
	return integrationNames[i]
}

// ParseIntegration looks an integration scheme up by name.
func ParseIntegration(name string) (Integration, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i := IntegrationEuler; i < integrationLast; i++ {
		if integrationNames[i] == name {
			return i, nil
		}
	}
	return IntegrationUnknown, fmt.Errorf("unknown integration %q", name)
}

// StopReason says why a half-trace ended, or why a fiber went nowhere.
type StopReason int

const (
	StopUnknown StopReason = iota
	// StopAniso: the anisotropy metric fell below its threshold.
	StopAniso
	// StopLength: the next step would exceed the maximum half length.
	StopLength
	// StopNumSteps: the half reached its maximum number of steps, or its
	// bounded buffer is full.
	StopNumSteps
	// StopConfidence: the interpolated confidence fell below its threshold.
	StopConfidence
	// StopBounds: a probe left the volume.
	StopBounds
	// StopMinLength: the whole fiber is shorter than the minimum length.
	StopMinLength
	// StopMinNumSteps: the whole fiber has fewer steps than the minimum.
	StopMinNumSteps
	// StopStub: neither half took a step.
	StopStub
	// StopStalled: a step had zero length.
	StopStalled
	// StopCeiling: the half hit MaxSteps. This points at a
	// misconfiguration rather than a property of the data.
	StopCeiling
	stopLast
)

var stopNames = [...]string{
	StopUnknown:     "unknown",
	StopAniso:       "aniso",
	StopLength:      "length",
	StopNumSteps:    "steps",
	StopConfidence:  "confidence",
	StopBounds:      "bounds",
	StopMinLength:   "minlength",
	StopMinNumSteps: "minsteps",
	StopStub:        "stub",
	StopStalled:     "stalled",
	StopCeiling:     "ceiling",
}

func (r StopReason) String() string {
	if r < 0 || r >= stopLast {
		return fmt.Sprintf("StopReason(%d)", int(r))
	}
	return stopNames[r]
}

// Configurable reports whether the reason can be enabled as a criterion.
// Stalled and Ceiling are always checked.
func (r StopReason) Configurable() bool {
	return r > StopUnknown && r < StopStalled
}

// ParseStopReason looks a stop reason up by name.
func ParseStopReason(name string) (StopReason, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for r := StopAniso; r < stopLast; r++ {
		if stopNames[r] == name {
			return r, nil
		}
	}
	return StopUnknown, fmt.Errorf("unknown stop criterion %q", name)
}

// StopReasons lists every reason in declaration order, StopUnknown first.
func StopReasons() []StopReason {
	out := make([]StopReason, 0, stopLast)
	for r := StopUnknown; r < stopLast; r++ {
		out = append(out, r)
	}
	return out
}

// StopSet is a bitmask of enabled stop criteria.
type StopSet uint32

// Has reports whether r is enabled.
func (s StopSet) Has(r StopReason) bool {
	return s&(1<<uint(r)) != 0
}

func (s StopSet) with(r StopReason) StopSet {
	return s | 1<<uint(r)
}

func (s StopSet) without(r StopReason) StopSet {
	return s &^ (1 << uint(r))
}

func (s StopSet) String() string {
	var parts []string
	for r := StopAniso; r < stopLast; r++ {
		if s.Has(r) {
			parts = append(parts, r.String())
		}
	}
	return strings.Join(parts, "|")
}
