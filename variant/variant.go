// Package variant defines the named build profiles a bundle can be built
// for. A profile selects compile-time features for the external compiler
// and the network parameters those features imply.
package variant

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"

	"xdao.co/actorbundle/actors"
)

var (
	ErrUnknownVariant = errors.New("variant: unknown variant")
	ErrInvalidVariant = errors.New("variant: invalid variant")
)

// Compiler features understood by the actor sources.
const (
	FeatureMinPower2K               = "min-power-2k"
	FeatureMinPower2G               = "min-power-2g"
	FeatureMinPower32G              = "min-power-32g"
	FeatureShortPreCommit           = "short-precommit"
	FeatureNoProviderDealCollateral = "no-provider-deal-collateral"
	FeatureSmallDeals               = "small-deals"
)

var knownFeatures = map[string]bool{
	FeatureMinPower2K:               true,
	FeatureMinPower2G:               true,
	FeatureMinPower32G:              true,
	FeatureShortPreCommit:           true,
	FeatureNoProviderDealCollateral: true,
	FeatureSmallDeals:               true,
}

// Sector sizes in bytes.
const (
	Sector2KiB   uint64 = 2 << 10
	Sector8MiB   uint64 = 8 << 20
	Sector512MiB uint64 = 512 << 20
	Sector32GiB  uint64 = 32 << 30
	Sector64GiB  uint64 = 64 << 30
)

// Params are the network constants a variant compiles in.
type Params struct {
	MinConsensusPower        uint64   `yaml:"min_consensus_power"`
	SectorSizes              []uint64 `yaml:"sector_sizes"`
	MinDealSize              uint64   `yaml:"min_deal_size"`
	ShortPreCommit           bool     `yaml:"short_precommit"`
	NoProviderDealCollateral bool     `yaml:"no_provider_deal_collateral"`
}

// Variant is one named build profile.
type Variant struct {
	Name           string `yaml:"name"`
	NetworkVersion uint32 `yaml:"network_version"`
	// ActorsVersion is the semantic version of the actor code.
	ActorsVersion string   `yaml:"actors_version"`
	Features      []string `yaml:"features"`
	Params        Params   `yaml:"params"`
	// RequireAll makes the build fail unless every actor type is present.
	RequireAll bool `yaml:"require_all"`
}

// clone returns a copy of v that shares no slices with it.
func (v Variant) clone() Variant {
	v.Features = append([]string(nil), v.Features...)
	v.Params.SectorSizes = append([]uint64(nil), v.Params.SectorSizes...)
	return v
}

// Override is a config-file patch for one profile. Zero fields keep the
// base value; RequireAll is a pointer so a file can switch it off.
type Override struct {
	Name           string   `yaml:"name"`
	NetworkVersion uint32   `yaml:"network_version"`
	ActorsVersion  string   `yaml:"actors_version"`
	Features       []string `yaml:"features"`
	Params         Params   `yaml:"params"`
	RequireAll     *bool    `yaml:"require_all"`
}

// Required returns the actor types a build of v must contain.
func (v Variant) Required() []actors.Type {
	if !v.RequireAll {
		return nil
	}
	return actors.All()
}

// Version parses ActorsVersion.
func (v Variant) Version() (*semver.Version, error) {
	ver, err := semver.NewVersion(v.ActorsVersion)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: actors_version %q: %v", ErrInvalidVariant, v.Name, v.ActorsVersion, err)
	}
	return ver, nil
}

// HasFeature reports whether f is enabled for v.
func (v Variant) HasFeature(f string) bool {
	for _, have := range v.Features {
		if have == f {
			return true
		}
	}
	return false
}

// Validate checks names, versions and features.
func (v Variant) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidVariant)
	}
	if _, err := v.Version(); err != nil {
		return err
	}
	powerFlags := 0
	for _, f := range v.Features {
		if !knownFeatures[f] {
			return fmt.Errorf("%w: %s: unknown feature %q", ErrInvalidVariant, v.Name, f)
		}
		switch f {
		case FeatureMinPower2K, FeatureMinPower2G, FeatureMinPower32G:
			powerFlags++
		}
	}
	if powerFlags > 1 {
		return fmt.Errorf("%w: %s: min-power features are mutually exclusive", ErrInvalidVariant, v.Name)
	}
	if v.Params.MinConsensusPower == 0 {
		return fmt.Errorf("%w: %s: min_consensus_power must be positive", ErrInvalidVariant, v.Name)
	}
	return nil
}

// ParamsFor derives network parameters from a feature set.
func ParamsFor(features []string) Params {
	has := func(f string) bool {
		for _, x := range features {
			if x == f {
				return true
			}
		}
		return false
	}
	p := Params{
		MinConsensusPower: 10 << 40,
		SectorSizes:       []uint64{Sector32GiB, Sector64GiB},
		MinDealSize:       1 << 20,
	}
	switch {
	case has(FeatureMinPower2K):
		p.MinConsensusPower = 2 << 10
	case has(FeatureMinPower2G):
		p.MinConsensusPower = 2 << 30
	case has(FeatureMinPower32G):
		p.MinConsensusPower = 32 << 30
	}
	if has(FeatureMinPower2K) || has(FeatureMinPower2G) {
		p.SectorSizes = []uint64{Sector2KiB, Sector8MiB, Sector512MiB, Sector32GiB, Sector64GiB}
	}
	if has(FeatureSmallDeals) {
		p.MinDealSize = 256
	}
	p.ShortPreCommit = has(FeatureShortPreCommit)
	p.NoProviderDealCollateral = has(FeatureNoProviderDealCollateral)
	return p
}

// Env returns the environment passed to an external compiler for v.
// Keys are sorted so the command line is reproducible.
func (v Variant) Env() []string {
	features := append([]string(nil), v.Features...)
	sort.Strings(features)
	return []string{
		"ACTORBUNDLE_VARIANT=" + v.Name,
		"ACTORBUNDLE_NETWORK_VERSION=" + fmt.Sprint(v.NetworkVersion),
		"ACTORBUNDLE_ACTORS_VERSION=" + v.ActorsVersion,
		"ACTORBUNDLE_FEATURES=" + strings.Join(features, ","),
		"ACTORBUNDLE_MIN_CONSENSUS_POWER=" + fmt.Sprint(v.Params.MinConsensusPower),
	}
}
