package billing

import "errors"

var (
	ErrInvalidConfig   = errors.New("invalid billing configuration")
	ErrCatalogLoad     = errors.New("failed to load plan catalog")
	ErrBackendConnect  = errors.New("failed to connect billing backend")
	ErrMigrationFailed = errors.New("failed to migrate billing schema")
)
