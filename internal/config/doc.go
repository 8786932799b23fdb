// Package config holds the run configuration for miles: built-in defaults,
// the optional .miles YAML file, and validation of the merged result.
package config
