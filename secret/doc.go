// Package secret resolves secret references in configuration values.
//
// A value is first expanded against the environment (see ExpandEnvStrict),
// then any "secretref:<provider>:<ref>" references are replaced with the
// value the named Provider returns:
//   - Full value:  secretref:env:LATEXBOT_JWT_SECRET
//   - Inline use:  Bearer secretref:file:api-key.txt
//
// Two providers are built in: EnvProvider reads environment variables and
// FileProvider reads files below a root directory, such as mounted secrets.
package secret
