package registry

import (
	"os"
	"strings"
)

// CredentialSource resolves database credentials for a license slug when the
// catalog row does not carry them.
type CredentialSource interface {
	Lookup(slug string) (user, password string, ok bool)
}

// EnvCredentials reads credentials from {SLUG_UPPER}_DB_USER and
// {SLUG_UPPER}_DB_PASSWORD environment variables.
type EnvCredentials struct{}

func (EnvCredentials) Lookup(slug string) (string, string, bool) {
	prefix := strings.ToUpper(strings.TrimSpace(slug))
	user := os.Getenv(prefix + "_DB_USER")
	password := os.Getenv(prefix + "_DB_PASSWORD")
	return user, password, user != "" && password != ""
}
