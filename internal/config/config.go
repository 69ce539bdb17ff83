package config

import (
	"errors"

	"github.com/kelseyhightower/envconfig"
)

// Config holds runtime configuration for a reconciliation run.
type Config struct {
	// CreditPrefix is the supplier's credit-memo invoice-number series.
	// A document is a credit memo if and only if its invoice number starts
	// with this prefix.
	CreditPrefix string `envconfig:"RECON_CREDIT_PREFIX" default:"200"`

	// ToleranceCentsPerDoc is the reconciliation tolerance in cents per
	// document, absorbing per-document rounding in extracted totals.
	ToleranceCentsPerDoc int `envconfig:"RECON_TOLERANCE_CENTS_PER_DOC" default:"1"`

	// CanonTablePath points at the versioned canonicalization/override table.
	// A run cannot start without it.
	CanonTablePath string `envconfig:"RECON_CANON_TABLE" default:"canonical_table.json"`

	// Workers bounds the extraction/normalization worker pool.
	Workers int `envconfig:"RECON_WORKERS" default:"4"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// DatabaseURL is only needed by `app publish`.
	DatabaseURL string `envconfig:"DATABASE_URL"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.CreditPrefix == "" {
		return nil, errors.New("credit prefix must not be empty")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &cfg, nil
}
