package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DatabaseConfig contains the PostgreSQL connection settings. The
// connection is given either as a full URL or as individual components;
// the URL wins when both are set.
type DatabaseConfig struct {
	URL      string `envconfig:"URL"`
	Host     string `envconfig:"HOST"`
	Port     string `envconfig:"PORT"`
	Name     string `envconfig:"NAME"`
	User     string `envconfig:"USER"`
	Password string `envconfig:"PASSWORD"`

	SSLMode string `envconfig:"SSL_MODE" default:"prefer" validate:"oneof=disable allow prefer require verify-ca verify-full"`

	// Pool sizing and lifetimes, passed through to pgxpool.
	MaxConns        int           `envconfig:"MAX_CONNS" default:"25" validate:"min=1"`
	MinConns        int           `envconfig:"MIN_CONNS" default:"2" validate:"min=0"`
	MaxConnLifetime time.Duration `envconfig:"MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `envconfig:"MAX_CONN_IDLE_TIME" default:"30m"`
	ConnectTimeout  time.Duration `envconfig:"CONNECT_TIMEOUT" default:"5s"`
}

// ConnectionString returns the URL as-is when set, otherwise assembles
// one from the individual components.
func (c *DatabaseConfig) ConnectionString() string {
	if c.URL != "" {
		return c.URL
	}

	params := url.Values{}
	params.Add("sslmode", c.SSLMode)

	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?%s",
		c.User, c.Password, c.Host, c.Port, c.Name, params.Encode())
}

// Validate checks the database configuration. Production additionally
// requires a strong password and a verifying SSL mode.
func (c *DatabaseConfig) Validate(environment string) error {
	if c.URL != "" {
		if err := validatePostgresURL(c.URL); err != nil {
			return fmt.Errorf("invalid database URL: %w", err)
		}
	} else {
		if err := validateHost(c.Host, "database"); err != nil {
			return err
		}
		if err := validatePort(c.Port, "database"); err != nil {
			return err
		}
		if err := validateIdentifier(c.Name, "database name"); err != nil {
			return err
		}
		if len(c.Name) > 63 {
			return fmt.Errorf("database name cannot exceed 63 characters")
		}
		if err := validateIdentifier(c.User, "database user"); err != nil {
			return err
		}

		if environment == EnvironmentProduction {
			if c.Password == "" {
				return fmt.Errorf("database password is required in production environment")
			}
			if err := validatePasswordStrength(c.Password, "database", environment); err != nil {
				return err
			}
			if !isSecureSSLMode(c.SSLMode) {
				return fmt.Errorf("database SSL mode must be 'require', 'verify-ca', or 'verify-full' in production environment")
			}
		}
	}

	if c.MinConns > c.MaxConns {
		return fmt.Errorf("min_conns (%d) cannot be greater than max_conns (%d)", c.MinConns, c.MaxConns)
	}
	return nil
}

// IsConfigured reports whether enough is set to attempt a connection.
// Password requirements are environment-specific and checked by Validate.
func (c *DatabaseConfig) IsConfigured() bool {
	if c.URL != "" {
		return true
	}
	return c.Host != "" && c.Port != "" && c.Name != "" && c.User != ""
}

// validatePostgresURL checks scheme, host, user, and database name of a
// connection URL.
func validatePostgresURL(dbURL string) error {
	parsed, err := parseAndValidateURL(dbURL, []string{"postgres", "postgresql"})
	if err != nil {
		return err
	}

	if parsed.User == nil || parsed.User.Username() == "" {
		return fmt.Errorf("user is required in URL")
	}

	if strings.TrimPrefix(parsed.Path, "/") == "" {
		return fmt.Errorf("database name is required in URL path")
	}
	return nil
}

// validateIdentifier rejects empty values and embedded whitespace.
func validateIdentifier(value, context string) error {
	if value == "" {
		return fmt.Errorf("%s cannot be empty", context)
	}
	if strings.ContainsAny(value, " \t\n\r") {
		return fmt.Errorf("%s cannot contain whitespace", context)
	}
	return nil
}
