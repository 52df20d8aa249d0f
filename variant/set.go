package variant

import (
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// Set is an immutable collection of profiles keyed by name.
type Set struct {
	byName map[string]Variant
	order  []string
}

// NewSet validates vs and indexes them by name. Names must be unique.
func NewSet(vs []Variant) (*Set, error) {
	s := &Set{byName: make(map[string]Variant, len(vs))}
	for _, v := range vs {
		if err := v.Validate(); err != nil {
			return nil, err
		}
		if v.Name == DefaultAlias {
			return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidVariant, DefaultAlias)
		}
		if _, ok := s.byName[v.Name]; ok {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidVariant, v.Name)
		}
		s.byName[v.Name] = v.clone()
		s.order = append(s.order, v.Name)
	}
	return s, nil
}

// Merge returns a new Set with overrides applied. An override for an
// existing name replaces only the fields it sets; unknown names are added.
// When an override changes Features without Params, Params are re-derived.
func (s *Set) Merge(overrides []Override) (*Set, error) {
	merged := make([]Variant, 0, len(s.order)+len(overrides))
	index := map[string]int{}
	for _, name := range s.order {
		index[name] = len(merged)
		merged = append(merged, s.byName[name].clone())
	}
	for _, o := range overrides {
		name := o.Name
		if name == DefaultAlias {
			name = "mainnet"
		}
		i, ok := index[name]
		if !ok {
			v := Variant{
				Name:           name,
				NetworkVersion: o.NetworkVersion,
				ActorsVersion:  o.ActorsVersion,
				Features:       o.Features,
				Params:         o.Params,
				RequireAll:     o.RequireAll != nil && *o.RequireAll,
			}
			if v.ActorsVersion == "" {
				v.ActorsVersion = builtinActorsVersion
			}
			if v.NetworkVersion == 0 {
				v.NetworkVersion = builtinNetworkVersion
			}
			if v.Params.MinConsensusPower == 0 {
				v.Params = ParamsFor(v.Features)
			}
			index[name] = len(merged)
			merged = append(merged, v)
			continue
		}
		base := merged[i]
		if o.NetworkVersion != 0 {
			base.NetworkVersion = o.NetworkVersion
		}
		if o.ActorsVersion != "" {
			base.ActorsVersion = o.ActorsVersion
		}
		if o.Features != nil {
			base.Features = o.Features
			base.Params = ParamsFor(o.Features)
		}
		if o.Params.MinConsensusPower != 0 {
			base.Params = o.Params
		}
		if o.RequireAll != nil {
			base.RequireAll = *o.RequireAll
		}
		merged[i] = base
	}
	return NewSet(merged)
}

// Lookup returns the profile called name. "default" selects mainnet.
func (s *Set) Lookup(name string) (Variant, error) {
	if name == DefaultAlias {
		name = "mainnet"
	}
	v, ok := s.byName[name]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", ErrUnknownVariant, name)
	}
	return v.clone(), nil
}

// Names returns profile names in definition order.
func (s *Set) Names() []string {
	return append([]string(nil), s.order...)
}

// All returns every profile in definition order.
func (s *Set) All() []Variant {
	out := make([]Variant, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.byName[name].clone())
	}
	return out
}

// Matching returns profiles whose ActorsVersion satisfies constraint
// (for example ">= 12, < 14"), sorted by network version then name.
func (s *Set) Matching(constraint string) ([]Variant, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("variant: constraint %q: %w", constraint, err)
	}
	var out []Variant
	for _, v := range s.All() {
		ver, err := v.Version()
		if err != nil {
			return nil, err
		}
		if c.Check(ver) {
			out = append(out, v)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NetworkVersion != out[j].NetworkVersion {
			return out[i].NetworkVersion < out[j].NetworkVersion
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
