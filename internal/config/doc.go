// Package config provides the configuration of a spidercrab check: defaults,
// validation, the optional YAML configuration file and the ignore file that
// suppresses known findings.
package config
