package config

import "errors"

var (
	ErrParsingConfig    = errors.New("failed to parse environment variables into config")
	ErrNilPointer       = errors.New("nil pointer passed to config loader")
	ErrEnvFileNotLoaded = errors.New("failed to load env file")
)
