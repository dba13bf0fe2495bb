// Package config provides configuration loading and validation for the voice transcriber.
// Values come from Default, then an optional YAML file, then environment variables
// (optionally loaded from a .env file).
package config
