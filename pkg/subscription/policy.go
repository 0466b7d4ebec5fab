package subscription

import "time"

// Policy holds the commercial constants of the lifecycle.
type Policy struct {
	TrialLength        time.Duration `env:"TRIAL_LENGTH" envDefault:"168h"`
	TrialExtension     time.Duration `env:"TRIAL_EXTENSION" envDefault:"168h"`
	MaxTrialExtensions int           `env:"TRIAL_MAX_EXTENSIONS" envDefault:"2"`
	// TrialGrace is how long after the trial end a tenant may still extend,
	// and how long the sweep waits before cancelling an unconverted trial.
	TrialGrace time.Duration `env:"TRIAL_GRACE" envDefault:"72h"`

	AccompanimentPrice  int64 `env:"ACCOMPANIMENT_PRICE" envDefault:"10000"`
	AccompanimentMonths int   `env:"ACCOMPANIMENT_MONTHS" envDefault:"2"`

	CheckoutTTL time.Duration `env:"CHECKOUT_TTL" envDefault:"24h"`
	LockTTL     time.Duration `env:"TENANT_LOCK_TTL" envDefault:"30s"`

	// SweepWorkers bounds how many tenants a sweep processes concurrently.
	SweepWorkers int `env:"SWEEP_WORKERS" envDefault:"4"`
}

// DefaultPolicy mirrors the envDefault tags.
func DefaultPolicy() Policy {
	return Policy{
		TrialLength:         7 * 24 * time.Hour,
		TrialExtension:      7 * 24 * time.Hour,
		MaxTrialExtensions:  2,
		TrialGrace:          3 * 24 * time.Hour,
		AccompanimentPrice:  10000,
		AccompanimentMonths: 2,
		CheckoutTTL:         24 * time.Hour,
		LockTTL:             30 * time.Second,
		SweepWorkers:        4,
	}
}
