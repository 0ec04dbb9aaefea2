// Package config provides configuration loading and validation for the
// voice query service. Configuration is a YAML file; missing keys keep
// their defaults, and every section validates itself.
package config
