// Package config loads latexbot configuration with viper.
//
// Values come from, in increasing precedence: the defaults in Options, a
// latexbot.toml (or .yaml/.json) file, LATEXBOT_* environment variables, and
// command-line flags bound to the same viper instance. String values that may
// hold credentials or paths are passed through the secret package, so
// ${ENV_VAR} and secretref:<provider>:<ref> work in any of those sources.
package config
