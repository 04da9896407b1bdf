// Package credentials resolves per-tenant ERP contracts: which authentication
// protocol the tenant's contract uses, where the ERP lives, and the secrets
// needed to log in. Rows are owned by tenant administration; this package only
// reads them.
package credentials

import "fmt"

type AuthType string

const (
	AuthLegacy AuthType = "LEGACY"
	AuthOAuth2 AuthType = "OAUTH2"
)

// AuthConfig is the closed variant over the two ERP authentication protocols.
// Consumers type-switch on the concrete arm; there is no string branching.
type AuthConfig interface {
	Type() AuthType
}

// Legacy carries username/password/app-key login secrets.
type Legacy struct {
	Token    string
	AppKey   string
	Username string
	Password string
}

func (Legacy) Type() AuthType { return AuthLegacy }

// OAuth2 carries client-credentials secrets for newer contracts.
type OAuth2 struct {
	ClientID     string
	ClientSecret string
	XToken       string
}

func (OAuth2) Type() AuthType { return AuthOAuth2 }

// TenantCredential is one tenant's ERP contract. Immutable within a session;
// changes take effect on the next token acquisition.
type TenantCredential struct {
	TenantID string
	BaseURL  string
	Auth     AuthConfig
}

// NotConfiguredError means no usable contract row exists for the tenant.
type NotConfiguredError struct {
	TenantID string
}

func (e *NotConfiguredError) Error() string {
	return fmt.Sprintf("tenant %s: no usable ERP contract", e.TenantID)
}
