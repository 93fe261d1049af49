package models

// Provider identifies a configured external account or integration within a
// namespace, addressed by (type, alias), e.g. "github:default".
// EncryptedConfig holds the provider credentials sealed by the secrets codec.
type Provider struct {
	ID              string `json:"id"`
	NamespaceID     string `json:"namespace_id" validate:"required"`
	Type            string `json:"type"         validate:"required"`
	Alias           string `json:"alias"        validate:"required"`
	EncryptedConfig string `json:"encrypted_config,omitempty"`
}

// Known provider types.
const (
	ProviderTypeBuiltin  = "builtin"
	ProviderTypeKVStore  = "kvstore"
	ProviderTypeSlack    = "slack"
	ProviderTypeGitHub   = "github"
	ProviderTypeSchedule = "schedule"
)

// zeroSetupProviderTypes lists provider types that need no credentials and
// are auto-created during reconciliation when referenced. Every other type
// must be configured up front or trigger creation fails.
var zeroSetupProviderTypes = map[string]bool{
	ProviderTypeBuiltin: true,
	ProviderTypeKVStore: true,
}

// IsZeroSetupProvider reports whether providers of this type may be
// auto-created with an empty configuration.
func IsZeroSetupProvider(providerType string) bool {
	return zeroSetupProviderTypes[providerType]
}
