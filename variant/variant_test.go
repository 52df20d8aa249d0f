package variant

import (
	"errors"
	"strings"
	"testing"

	"xdao.co/actorbundle/actors"
)

func TestBuiltins_MinConsensusPower(t *testing.T) {
	want := map[string]uint64{
		"mainnet":        10 << 40,
		"caterpillarnet": 2 << 10,
		"butterflynet":   2 << 30,
		"calibrationnet": 32 << 30,
		"devnet":         2 << 10,
		"testing":        2 << 10,
	}
	for name, power := range want {
		v, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if v.Params.MinConsensusPower != power {
			t.Fatalf("%s: min power %d want %d", name, v.Params.MinConsensusPower, power)
		}
	}
	if len(Names()) != len(want) {
		t.Fatalf("names: %v", Names())
	}
}

func TestLookup_DefaultAliasAndUnknown(t *testing.T) {
	v, err := Lookup(DefaultAlias)
	if err != nil || v.Name != "mainnet" {
		t.Fatalf("default: %+v %v", v, err)
	}
	if len(v.Required()) != len(actors.All()) {
		t.Fatalf("mainnet must require every actor type")
	}
	if _, err := Lookup("localnet"); !errors.Is(err, ErrUnknownVariant) {
		t.Fatalf("got %v want ErrUnknownVariant", err)
	}
	tv, _ := Lookup("testing")
	if tv.Required() != nil {
		t.Fatalf("testing builds partial bundles")
	}
}

func TestValidate(t *testing.T) {
	base := Variant{Name: "x", ActorsVersion: "1.2.3", Params: Params{MinConsensusPower: 1}}
	if err := base.Validate(); err != nil {
		t.Fatalf("valid: %v", err)
	}
	cases := map[string]Variant{
		"no name":     {ActorsVersion: "1.0.0", Params: Params{MinConsensusPower: 1}},
		"bad semver":  {Name: "x", ActorsVersion: "thirteen", Params: Params{MinConsensusPower: 1}},
		"bad feature": {Name: "x", ActorsVersion: "1.0.0", Features: []string{"fast-finality"}, Params: Params{MinConsensusPower: 1}},
		"two powers":  {Name: "x", ActorsVersion: "1.0.0", Features: []string{FeatureMinPower2K, FeatureMinPower2G}, Params: Params{MinConsensusPower: 1}},
		"zero power":  {Name: "x", ActorsVersion: "1.0.0"},
	}
	for name, v := range cases {
		if err := v.Validate(); !errors.Is(err, ErrInvalidVariant) {
			t.Fatalf("%s: got %v want ErrInvalidVariant", name, err)
		}
	}
}

func TestSet_Merge(t *testing.T) {
	s, err := NewSet(Builtins())
	if err != nil {
		t.Fatal(err)
	}
	merged, err := s.Merge([]Override{
		{Name: "devnet", Features: []string{FeatureMinPower2G}},
		{Name: "default", NetworkVersion: 23},
		{Name: "localnet", Features: []string{FeatureMinPower2K}},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	dev, _ := merged.Lookup("devnet")
	if dev.Params.MinConsensusPower != 2<<30 || dev.ActorsVersion != builtinActorsVersion {
		t.Fatalf("devnet override: %+v", dev)
	}
	main, _ := merged.Lookup("mainnet")
	if main.NetworkVersion != 23 || !main.RequireAll {
		t.Fatalf("mainnet override: %+v", main)
	}
	local, err := merged.Lookup("localnet")
	if err != nil || local.Params.MinConsensusPower != 2<<10 {
		t.Fatalf("localnet: %+v %v", local, err)
	}
	if got := merged.Names(); got[len(got)-1] != "localnet" {
		t.Fatalf("new variants are appended: %v", got)
	}
	orig, _ := s.Lookup("devnet")
	if orig.Params.MinConsensusPower != 2<<10 {
		t.Fatalf("Merge mutated the receiver")
	}
}

func TestNewSet_RejectsDuplicates(t *testing.T) {
	vs := append(Builtins(), Builtins()[0])
	if _, err := NewSet(vs); !errors.Is(err, ErrInvalidVariant) {
		t.Fatalf("got %v", err)
	}
}

func TestSet_Matching(t *testing.T) {
	s, _ := NewSet(Builtins())
	s, err := s.Merge([]Override{{Name: "legacy", ActorsVersion: "11.0.0", NetworkVersion: 20}})
	if err != nil {
		t.Fatal(err)
	}
	old, err := s.Matching("< 12")
	if err != nil {
		t.Fatalf("Matching: %v", err)
	}
	if len(old) != 1 || old[0].Name != "legacy" {
		t.Fatalf("got %v", old)
	}
	all, err := s.Matching(">= 11")
	if err != nil || all[0].Name != "legacy" || len(all) != 7 {
		t.Fatalf("ordering by network version: %v %v", all, err)
	}
	if _, err := s.Matching("not a constraint"); err == nil {
		t.Fatalf("expected constraint error")
	}
}

func TestEnv(t *testing.T) {
	v, _ := Lookup("devnet")
	env := strings.Join(v.Env(), "\n")
	for _, want := range []string{
		"ACTORBUNDLE_VARIANT=devnet",
		"ACTORBUNDLE_FEATURES=min-power-2k,no-provider-deal-collateral,short-precommit,small-deals",
		"ACTORBUNDLE_MIN_CONSENSUS_POWER=2048",
	} {
		if !strings.Contains(env, want) {
			t.Fatalf("env missing %q:\n%s", want, env)
		}
	}
}

func TestLookup_ReturnsIndependentCopies(t *testing.T) {
	v, err := Lookup("devnet")
	if err != nil {
		t.Fatal(err)
	}
	before := v.Features[0]
	v.Features[0] = "mutated"
	v.Params.SectorSizes[0] = 1

	again, err := Lookup("devnet")
	if err != nil {
		t.Fatal(err)
	}
	if again.Features[0] != before {
		t.Fatalf("feature changed through a returned copy: %q", again.Features[0])
	}
	if again.Params.SectorSizes[0] == 1 {
		t.Fatalf("sector sizes changed through a returned copy")
	}

	s, _ := NewSet(Builtins())
	all := s.All()
	all[0].Features = append(all[0].Features, FeatureSmallDeals)
	for i := range all[1].Features {
		all[1].Features[i] = "mutated"
	}
	fresh := s.All()
	if fresh[0].HasFeature(FeatureSmallDeals) || fresh[1].Features[0] == "mutated" {
		t.Fatalf("All exposes internal slices: %+v", fresh[:2])
	}
}

func TestSet_MergeRequireAll(t *testing.T) {
	s, _ := NewSet(Builtins())
	off, on := false, true
	merged, err := s.Merge([]Override{
		{Name: "mainnet", RequireAll: &off},
		{Name: "testing", RequireAll: &on},
		{Name: "devnet", NetworkVersion: 23},
		{Name: "localnet", RequireAll: &on},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	for name, want := range map[string]bool{"mainnet": false, "testing": true, "devnet": true, "localnet": true} {
		v, err := merged.Lookup(name)
		if err != nil {
			t.Fatal(err)
		}
		if v.RequireAll != want {
			t.Fatalf("%s: RequireAll = %t want %t", name, v.RequireAll, want)
		}
	}
	if main, _ := merged.Lookup("mainnet"); main.Required() != nil {
		t.Fatalf("partial mainnet still requires types")
	}
}
