// Package config loads the leapbuild CLI configuration.
//
// The configuration types are defined in internal/config and re-exported
// here via type aliases so that commands only import this package.
package config

import sharedcfg "github.com/leapstack-labs/leapbuild/internal/config"

// Config is an alias for the shared project configuration.
type Config = sharedcfg.Config

// ServerConfig is an alias for the shared dev server configuration.
type ServerConfig = sharedcfg.ServerConfig

// SSLConfig is an alias for the shared TLS configuration.
type SSLConfig = sharedcfg.SSLConfig

// Defaults re-exported for flag help text.
const (
	ConfigFileName = sharedcfg.ConfigFileName
	DefaultOutDir  = sharedcfg.DefaultOutDir
	DefaultPort    = sharedcfg.DefaultPort
	DefaultOutput  = sharedcfg.DefaultOutput

	DefaultLocalConfigTemplate = sharedcfg.DefaultLocalConfigTemplate
)
