package secret

import "errors"

// Sentinel errors.
var (
	ErrProviderNotRegistered = errors.New("secret: provider is not registered")
	ErrInvalidRegistration   = errors.New("secret: invalid provider registration")
	ErrDuplicateProvider     = errors.New("secret: provider already registered")
	ErrEmptyRef              = errors.New("secret: ref is required")
	ErrEmptyValue            = errors.New("secret: provider returned empty value")
	ErrMissingEnv            = errors.New("secret: missing required environment variables")
	ErrNotFound              = errors.New("secret: not found")
	ErrOutsideRoot           = errors.New("secret: path escapes provider root")
)
