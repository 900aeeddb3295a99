// Package appid provides the chatgate application identity.
package appid

import (
	"context"
	"os"
	"strings"

	"github.com/fulmenhq/gofulmen/appidentity"
)

// Built-in identity values.
const (
	BinaryName  = "chatgate"
	Vendor      = "adrianaguero"
	EnvPrefix   = "CHATGATE_"
	ConfigName  = "chatgate"
	Description = "Rate-limited streaming chat backend"
)

// Default returns a fresh copy of the built-in identity.
func Default() *appidentity.Identity {
	return &appidentity.Identity{
		BinaryName:  BinaryName,
		Vendor:      Vendor,
		EnvPrefix:   EnvPrefix,
		ConfigName:  ConfigName,
		Description: Description,
	}
}

// Get returns the identity pinned through FULMEN_APP_IDENTITY_PATH, or the
// built-in identity when no path is set.
func Get(ctx context.Context) (*appidentity.Identity, error) {
	if strings.TrimSpace(os.Getenv(appidentity.EnvIdentityPath)) == "" {
		return Default(), nil
	}
	return appidentity.Get(ctx)
}
