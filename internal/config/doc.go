// Package config loads the deskthing-client YAML configuration.
//
// Files support ${VAR} environment variable interpolation. Durations are
// written as Go duration strings ("30s", "250ms"). Every field is optional
// except endpoint.address or endpoint.discovery.instance.
package config
