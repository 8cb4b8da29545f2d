package models

// Provider identifies which detector produced a score. Failed checks carry
// ProviderLocal. The set is closed; anything unrecognised maps to
// ProviderUnknown.
type Provider string

const (
	ProviderUnknown  Provider = "unknown"
	ProviderTokenSet Provider = "local_tokenset"
	ProviderSimhash  Provider = "local_simhash"
	ProviderLocal    Provider = "local"
)

// ParseProvider maps a provider key to a known Provider.
func ParseProvider(key string) Provider {
	switch Provider(key) {
	case ProviderTokenSet, ProviderSimhash, ProviderLocal:
		return Provider(key)
	default:
		return ProviderUnknown
	}
}

// Known reports whether p is not the unknown arm.
func (p Provider) Known() bool {
	return ParseProvider(string(p)) != ProviderUnknown
}
