// Package config holds the runtime configuration for depwatch.
//
// Configuration comes from three layers, applied in order:
//  1. Compiled-in defaults (constants in this package)
//  2. The optional .depwatch YAML file (current directory, then home)
//  3. CLI flags, which always win
//
// The Config struct is populated once during CLI parsing and passed
// through the application by dependency injection; there is no global
// configuration state.
package config
