// Package config manages the Doorstep client's persistent configuration.
//
// The registry is a YAML file in the platform config directory
// (~/.config/doorstep/config.yaml on Linux/macOS) holding the user's
// selected server and application preferences. Writes are atomic
// (temp file + rename) so a crash never corrupts the file.
//
// Discovered servers are never cached in the registry. Discovery is cheap
// and the network is the source of truth; only the user's explicit
// selection survives a restart.
package config
