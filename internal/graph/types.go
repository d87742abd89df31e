package graph

import (
	"fmt"
	"strings"

	"github.com/faucetdb/schemagraph/internal/model"
)

// SQLType is an upstream (platform independent) type a reverse engineered
// column can be bound to.
type SQLType struct {
	Name      string         `json:"name" yaml:"name"`
	Code      model.TypeCode `json:"code" yaml:"code"`
	Precision int            `json:"precision,omitempty" yaml:"precision,omitempty"`
	Scale     int            `json:"scale,omitempty" yaml:"scale,omitempty"`
}

// TypeRegistry is the ordered set of upstream types known to a graph.
type TypeRegistry struct {
	types []SQLType
}

// NewTypeRegistry holds types in the given order, which breaks ties between
// candidates.
func NewTypeRegistry(types ...SQLType) *TypeRegistry {
	return &TypeRegistry{types: append([]SQLType(nil), types...)}
}

// Types returns a copy of the registered types.
func (r *TypeRegistry) Types() []SQLType {
	if r == nil {
		return nil
	}
	return append([]SQLType(nil), r.types...)
}

// Candidates returns the upstream types plausible for a column. A type whose
// name equals the native type name wins outright; otherwise every type with
// the same code is a candidate.
func (r *TypeRegistry) Candidates(code model.TypeCode, nativeType string) []SQLType {
	if r == nil {
		return nil
	}
	for _, t := range r.types {
		if strings.EqualFold(t.Name, nativeType) {
			return []SQLType{t}
		}
	}
	var out []SQLType
	for _, t := range r.types {
		if t.Code == code {
			out = append(out, t)
		}
	}
	return out
}

// TypeChooser picks one of several equally plausible upstream types for a
// column during bulk type assignment.
type TypeChooser interface {
	ChooseType(col *Column, candidates []SQLType) (SQLType, error)
}

// FirstCandidate chooses the first registered candidate.
type FirstCandidate struct{}

// ChooseType returns the first candidate.
func (FirstCandidate) ChooseType(_ *Column, candidates []SQLType) (SQLType, error) {
	return candidates[0], nil
}

// assignUpstreamTypes binds each column without an upstream type to one from
// the registry, consulting the chooser when the choice is ambiguous.
func assignUpstreamTypes(env *Env, cols []*Column) error {
	if env.Types == nil {
		return nil
	}
	for _, c := range cols {
		if c.upstream != nil {
			continue
		}
		candidates := env.Types.Candidates(c.typeCode, c.nativeType)
		switch len(candidates) {
		case 0:
			continue
		case 1:
			t := candidates[0]
			c.upstream = &t
		default:
			t, err := env.Chooser.ChooseType(c, candidates)
			if err != nil {
				return fmt.Errorf("choose type for column %q: %w", c.Name(), err)
			}
			c.upstream = &t
		}
	}
	return nil
}
