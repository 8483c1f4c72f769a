// Package config turns simguard's command line and optional TOML file into
// a Config.
//
// Numeric flags are lenient: a value that does not parse logs a warning and
// keeps the default instead of failing the run. Unknown flags are usage
// errors. Values from a --config file apply only to flags that were not
// given explicitly.
package config
