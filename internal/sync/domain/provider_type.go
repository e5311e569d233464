package domain

import "fmt"

// ProviderType identifies a remote calendar provider.
type ProviderType string

const (
	// ProviderGoogle is Google Calendar (OAuth2 + REST API).
	ProviderGoogle ProviderType = "google"
	// ProviderCalDAV is generic CalDAV (Fastmail, Nextcloud, iCloud,
	// self-hosted) with basic authentication.
	ProviderCalDAV ProviderType = "caldav"
)

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	return string(p)
}

// IsValid returns true if the provider type is recognized.
func (p ProviderType) IsValid() bool {
	switch p {
	case ProviderGoogle, ProviderCalDAV:
		return true
	default:
		return false
	}
}

// RequiresOAuth returns true if the provider uses OAuth2 for authentication.
func (p ProviderType) RequiresOAuth() bool {
	return p == ProviderGoogle
}

// DisplayName returns a human-readable name for the provider.
func (p ProviderType) DisplayName() string {
	switch p {
	case ProviderGoogle:
		return "Google Calendar"
	case ProviderCalDAV:
		return "CalDAV"
	default:
		return string(p)
	}
}

// ParseProviderType validates a provider string from config or CLI input.
func ParseProviderType(s string) (ProviderType, error) {
	p := ProviderType(s)
	if !p.IsValid() {
		return "", fmt.Errorf("unknown provider %q", s)
	}
	return p, nil
}

// AllProviderTypes returns all supported provider types.
func AllProviderTypes() []ProviderType {
	return []ProviderType{ProviderGoogle, ProviderCalDAV}
}
