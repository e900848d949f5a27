// Package appid holds the application's identity: binary, config and env names.
package appid

import "context"

// Identity names the application for help text, config discovery and env vars.
type Identity struct {
	Vendor      string
	BinaryName  string
	ConfigName  string
	EnvPrefix   string
	Description string
}

var identity = Identity{
	Vendor:      "quotalens",
	BinaryName:  "quotalens",
	ConfigName:  "quotalens",
	EnvPrefix:   "QUOTALENS_",
	Description: "Quota-aware client for the CoinDesk Data API",
}

// Get returns the application identity.
func Get(ctx context.Context) (*Identity, error) {
	id := identity
	return &id, nil
}
