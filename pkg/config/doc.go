// Package config loads the billing service configuration from environment
// variables.
//
// Configuration structs declare their variables with
// github.com/caarlos0/env/v11 tags. Load parses a struct type once per
// process and caches the result; LoadEnv reads .env files through
// github.com/joho/godotenv before parsing. Real environment variables always
// take precedence over values from files.
//
// # Usage
//
// Each package that needs settings owns a small struct with env tags, and
// the service config nests them:
//
//	// pkg/pg
//	type Config struct {
//	    ConnectionString string        `env:"DATABASE_URL"`
//	    MaxOpenConns     int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
//	    RetryInterval    time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
//	}
//
//	// svc/billing
//	type Config struct {
//	    StorageBackend string        `env:"STORAGE_BACKEND" envDefault:"memory"`
//	    SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"1h"`
//	    AdminTokens    []string      `env:"ADMIN_TOKENS" envSeparator:","`
//	    Postgres       pg.Config
//	    Redis          redis.Config
//	}
//
// At startup, optionally read extra env files, then parse:
//
//	config.MustLoadEnv(".env.local")
//
//	var cfg billing.Config
//	if err := config.Load(&cfg); err != nil {
//	    return err
//	}
//
// Without LoadEnv, the first Load reads ./.env when it exists. A missing file
// is not an error. With several files, earlier ones win over later ones.
//
// # Caching
//
// Parsed values are cached per Go type, so calling Load(&cfg) from several
// places returns the same values without touching the environment again.
// Tests that set variables with t.Setenv call ResetCache first:
//
//	config.ResetCache()
//	t.Setenv("SWEEP_INTERVAL", "5m")
//	var cfg billing.Config
//	require.NoError(t, config.Load(&cfg))
//
// # Errors
//
//   - ErrNilPointer: Load got a nil destination
//   - ErrParsingConfig: a value could not be parsed into its field type, or
//     a required variable is missing
//   - ErrEnvFileNotLoaded: an explicit env file could not be read
//
// Parse errors are joined with the env library's error, which names the
// offending variable. MustLoad and MustLoadEnv panic instead of returning and
// are meant for main only.
package config
