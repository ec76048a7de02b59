package oauth

import (
	"fmt"
	"strings"
)

// Provider defines a public type used by authcore APIs.
//
// Provider instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Provider uint8

const (
	ProviderGitHub Provider = iota + 1
	ProviderGoogle
	ProviderMicrosoft
)

// String returns the stable wire name of the provider.
func (p Provider) String() string {
	switch p {
	case ProviderGitHub:
		return "github"
	case ProviderGoogle:
		return "google"
	case ProviderMicrosoft:
		return "microsoft"
	default:
		return fmt.Sprintf("provider(%d)", uint8(p))
	}
}

// ParseProvider maps a wire name back to its Provider. Matching is
// case-insensitive.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "github":
		return ProviderGitHub, nil
	case "google":
		return ProviderGoogle, nil
	case "microsoft", "azuread":
		return ProviderMicrosoft, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
}
