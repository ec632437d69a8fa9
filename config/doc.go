// Package config handles loading and validation of the server configuration
// from defaults, an optional YAML file, IRIS_* environment variables and
// command line flags. It defines the listen address, the dataset location and
// format, logging, and the optional metrics and rate limiting settings.
package config
