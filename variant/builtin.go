package variant

// DefaultAlias names mainnet.
const DefaultAlias = "default"

const (
	builtinNetworkVersion = 22
	builtinActorsVersion  = "13.0.0"
)

func builtin(name string, requireAll bool, features ...string) Variant {
	return Variant{
		Name:           name,
		NetworkVersion: builtinNetworkVersion,
		ActorsVersion:  builtinActorsVersion,
		Features:       features,
		Params:         ParamsFor(features),
		RequireAll:     requireAll,
	}
}

// Builtins returns the built-in profiles in a fixed order.
func Builtins() []Variant {
	return []Variant{
		builtin("mainnet", true),
		builtin("caterpillarnet", true, FeatureMinPower2K, FeatureSmallDeals, FeatureShortPreCommit),
		builtin("butterflynet", true, FeatureMinPower2G),
		builtin("calibrationnet", true, FeatureMinPower32G),
		builtin("devnet", true, FeatureMinPower2K, FeatureSmallDeals, FeatureShortPreCommit, FeatureNoProviderDealCollateral),
		builtin("testing", false, FeatureMinPower2K, FeatureSmallDeals, FeatureNoProviderDealCollateral),
	}
}

var defaultSet = mustSet(Builtins())

func mustSet(vs []Variant) *Set {
	s, err := NewSet(vs)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup finds a built-in profile by name. "default" selects mainnet.
func Lookup(name string) (Variant, error) { return defaultSet.Lookup(name) }

// Names lists built-in profile names.
func Names() []string { return defaultSet.Names() }
