// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package config

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/toml"
	"github.com/urfave/cli/v3"
)

var (
	configPath = "config.toml"
	configFile = altsrc.NewStringPtrSourcer(&configPath)
)

type Config struct { //nolint:govet // fieldalignment not critical for config structs
	Server   ServerConfig
	Log      LogConfig
	Database DatabaseConfig
	Auth     AuthConfig
	SMTP     SMTPConfig
}

type ServerConfig struct { //nolint:govet // fieldalignment not critical for config structs
	Host        string
	Port        int
	MaxBodySize int // in MB
	CORSOrigins []string
}

type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // text, json
}

type DatabaseConfig struct {
	DSN  string // SQLite path or mongodb:// URI
	Name string // database name, MongoDB only
}

// IsMongo reports whether the DSN points at a MongoDB deployment.
func (c DatabaseConfig) IsMongo() bool {
	return strings.HasPrefix(c.DSN, "mongodb://") || strings.HasPrefix(c.DSN, "mongodb+srv://")
}

type AuthConfig struct { //nolint:govet // fieldalignment not critical
	JWTSecret           string
	SessionExpire       time.Duration
	ResetPasswordExpire time.Duration
	ResetURL            string // reset links are ResetURL + "/" + token
	SecretGenerated     bool   // JWTSecret was generated at startup
}

type SMTPConfig struct { //nolint:govet // fieldalignment not critical
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
	TLS      bool
}

func NewFromCLI(cmd *cli.Command) *Config {
	cfg := &Config{
		Server: ServerConfig{
			Host:        cmd.String("host"),
			Port:        int(cmd.Int("port")),
			MaxBodySize: int(cmd.Int("max-body-size")),
			CORSOrigins: cmd.StringSlice("cors-origins"),
		},
		Log: LogConfig{
			Level:  cmd.String("log-level"),
			Format: cmd.String("log-format"),
		},
		Database: DatabaseConfig{
			DSN:  cmd.String("database-dsn"),
			Name: cmd.String("database-name"),
		},
		Auth: AuthConfig{
			JWTSecret:           cmd.String("jwt-secret"),
			SessionExpire:       cmd.Duration("jwt-expire"),
			ResetPasswordExpire: cmd.Duration("reset-password-expire"),
			ResetURL:            strings.TrimSuffix(cmd.String("reset-url"), "/"),
		},
		SMTP: SMTPConfig{
			Host:     cmd.String("smtp-host"),
			Port:     int(cmd.Int("smtp-port")),
			Username: cmd.String("smtp-username"),
			Password: cmd.String("smtp-password"),
			From:     cmd.String("smtp-from"),
			FromName: cmd.String("smtp-from-name"),
			TLS:      cmd.Bool("smtp-tls"),
		},
	}

	applyAuthDefaults(cfg)

	return cfg
}

// applyAuthDefaults fills in a signing secret when none is configured.
// Tokens signed with a generated secret do not survive a restart.
func applyAuthDefaults(cfg *Config) {
	if cfg.Auth.JWTSecret == "" {
		cfg.Auth.JWTSecret = randomSecret()
		cfg.Auth.SecretGenerated = true
	}
}

// Warnings lists configuration problems worth reporting at startup.
func (c *Config) Warnings() []string {
	var warnings []string
	if c.Auth.SecretGenerated {
		warnings = append(warnings, "no JWT secret configured, using a random one")
	}
	if c.Auth.ResetPasswordExpire <= c.Auth.SessionExpire {
		warnings = append(warnings, "reset token lifetime should be longer than the session lifetime")
	}
	return warnings
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Aliases:     []string{"c"},
			Value:       "config.toml",
			Usage:       "Path to configuration file",
			Destination: &configPath,
			Sources:     cli.EnvVars("CONFIG"),
		},
		&cli.StringFlag{
			Name:    "host",
			Value:   "localhost",
			Usage:   "Host to bind to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("HOST"), toml.TOML("server.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "port",
			Value:   5000,
			Usage:   "Port to listen on",
			Sources: cli.NewValueSourceChain(cli.EnvVar("PORT"), toml.TOML("server.port", configFile)),
		},
		&cli.IntFlag{
			Name:    "max-body-size",
			Value:   1,
			Usage:   "Maximum request body size in MB",
			Sources: cli.NewValueSourceChain(cli.EnvVar("MAX_BODY_SIZE"), toml.TOML("server.max_body_size", configFile)),
		},
		&cli.StringSliceFlag{
			Name:    "cors-origins",
			Value:   []string{"*"},
			Usage:   "Allowed CORS origins",
			Sources: cli.NewValueSourceChain(cli.EnvVar("CORS_ORIGINS"), toml.TOML("server.cors_origins", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-level",
			Value:   "info",
			Usage:   "Log level (debug, info, warn, error)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_LEVEL"), toml.TOML("log.level", configFile)),
		},
		&cli.StringFlag{
			Name:    "log-format",
			Value:   "text",
			Usage:   "Log format (text, json)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("LOG_FORMAT"), toml.TOML("log.format", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-dsn",
			Value:   "./data/auth.db",
			Usage:   "SQLite database path or mongodb:// connection string",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_DSN"), toml.TOML("database.dsn", configFile)),
		},
		&cli.StringFlag{
			Name:    "database-name",
			Value:   "auth",
			Usage:   "Database name (MongoDB only)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("DATABASE_NAME"), toml.TOML("database.name", configFile)),
		},
		&cli.StringFlag{
			Name:    "jwt-secret",
			Usage:   "Secret used to sign session and reset tokens (random if empty)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("JWT_SECRET"), toml.TOML("auth.jwt_secret", configFile)),
		},
		&cli.DurationFlag{
			Name:    "jwt-expire",
			Value:   time.Hour,
			Usage:   "Session token lifetime",
			Sources: cli.NewValueSourceChain(cli.EnvVar("JWT_EXPIRE"), toml.TOML("auth.jwt_expire", configFile)),
		},
		&cli.DurationFlag{
			Name:    "reset-password-expire",
			Value:   24 * time.Hour,
			Usage:   "Password reset token lifetime",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_PASSWORD_EXPIRE"), toml.TOML("auth.reset_password_expire", configFile)),
		},
		&cli.StringFlag{
			Name:    "reset-url",
			Value:   "http://localhost:3000/reset-password",
			Usage:   "Client URL the reset token is appended to",
			Sources: cli.NewValueSourceChain(cli.EnvVar("RESET_URL"), toml.TOML("auth.reset_url", configFile)),
		},
		// SMTP flags
		&cli.StringFlag{
			Name:    "smtp-host",
			Value:   "smtp.mailtrap.io",
			Usage:   "SMTP server host",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_HOST"), toml.TOML("smtp.host", configFile)),
		},
		&cli.IntFlag{
			Name:    "smtp-port",
			Value:   2525,
			Usage:   "SMTP server port",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_PORT"), toml.TOML("smtp.port", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-username",
			Usage:   "SMTP username",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_USERNAME"), toml.TOML("smtp.username", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-password",
			Usage:   "SMTP password",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_PASSWORD"), toml.TOML("smtp.password", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from",
			Value:   "auth@example.com",
			Usage:   "Sender address for outgoing mail",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_FROM"), toml.TOML("smtp.from", configFile)),
		},
		&cli.StringFlag{
			Name:    "smtp-from-name",
			Value:   "Auth System",
			Usage:   "Sender display name",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_FROM_NAME"), toml.TOML("smtp.from_name", configFile)),
		},
		&cli.BoolFlag{
			Name:    "smtp-tls",
			Usage:   "Require TLS for SMTP (implicit TLS on port 465)",
			Sources: cli.NewValueSourceChain(cli.EnvVar("EMAIL_TLS"), toml.TOML("smtp.tls", configFile)),
		},
	}
}
