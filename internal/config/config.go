// Package config loads server settings from the environment (optionally
// seeded from a .env file) and the CLI settings file at ~/.vitality/config.yaml.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvFitnessAPIURL      = "FITNESS_API_URL"
	EnvFitnessAPIKey      = "FITNESS_API_KEY"
	EnvAppScriptID        = "GOOGLE_APP_SCRIPT_ID"
	EnvAPIBase            = "VITALITY_API_BASE"    // vitalityctl only
	EnvPublicAPIBase      = "NEXT_PUBLIC_API_BASE" // vitalityctl only
	EnvAddr               = "VITALITY_ADDR"
	EnvDBPath             = "VITALITY_DB_PATH"
	EnvMode               = "VITALITY_ENV"
	EnvCSRFKey            = "VITALITY_CSRF_KEY"
	EnvOperatorHash       = "VITALITY_OPERATOR_PASSWORD_HASH"
	EnvResendKey          = "VITALITY_RESEND_KEY"
	EnvEmailFrom          = "VITALITY_EMAIL_FROM"
	EnvEmailReplyTo       = "VITALITY_EMAIL_REPLY_TO"
	EnvSlowRequestMs      = "VITALITY_SLOW_REQUEST_MS"
	EnvSlowQueryMs        = "VITALITY_SLOW_QUERY_MS"
	EnvCORSOrigins        = "VITALITY_CORS_ORIGINS"
	EnvPDFDisabled        = "VITALITY_PDF_DISABLED"
	EnvUploadTimeout      = "VITALITY_UPLOAD_TIMEOUT"
	EnvGenerateTimeout    = "VITALITY_GENERATE_TIMEOUT"
	EnvPlannerHTTPTimeout = "VITALITY_PLANNER_HTTP_TIMEOUT"
)

// Defaults.
const (
	DefaultAddr            = ":8080"
	DefaultDBPath          = "vitality.db"
	DefaultSlowRequestMs   = 500
	DefaultSlowQueryMs     = 50
	DefaultUploadTimeout   = 30 * time.Second
	DefaultGenerateTimeout = 5 * time.Minute
	DefaultEmailFrom       = "Nightfall Fitness <plans@vitality.local>"
)

// ErrInvalidCSRFKey is returned when VITALITY_CSRF_KEY is not 32 hex-encoded bytes.
var ErrInvalidCSRFKey = errors.New(EnvCSRFKey + " must be 64 hex characters (32 bytes)")

// Config is the server configuration.
type Config struct {
	Addr   string
	DBPath string
	Mode   string // "production" enables secure cookies and a mandatory CSRF key

	// Fitness Planner API used by the /api proxy routes and the dashboard.
	FitnessAPIURL string
	FitnessAPIKey string

	// Apps Script deployment backing the analytics view.
	AppScriptID string

	CSRFKey              []byte // nil means generate per process
	OperatorPasswordHash string // bcrypt; empty disables operator login

	ResendKey    string
	EmailFrom    string
	EmailReplyTo string

	SlowRequestMs   int
	SlowQueryMs     int
	CORSOrigins     []string
	PDFDisabled     bool
	UploadTimeout   time.Duration
	GenerateTimeout time.Duration
	// PlannerHTTPTimeout caps every planner call at the transport level.
	// Zero leaves deadlines to the per-route contexts.
	PlannerHTTPTimeout time.Duration
}

// IsProduction reports whether the server runs in production mode.
func (c Config) IsProduction() bool {
	return c.Mode == "production"
}

// PlannerConfigured reports whether the proxy routes have an upstream.
func (c Config) PlannerConfigured() bool {
	return c.FitnessAPIURL != ""
}

// Load reads envFiles (missing files are ignored) into the process
// environment without overriding variables already set, then builds a Config.
// PRE: none
// POST: returns a Config with defaults applied, or an error for malformed values
func Load(envFiles ...string) (Config, error) {
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !os.IsNotExist(err) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr:                 orDefault(getenv(EnvAddr), DefaultAddr),
		DBPath:               orDefault(getenv(EnvDBPath), DefaultDBPath),
		Mode:                 getenv(EnvMode),
		FitnessAPIURL:        strings.TrimRight(strings.TrimSpace(getenv(EnvFitnessAPIURL)), "/"),
		FitnessAPIKey:        strings.TrimSpace(getenv(EnvFitnessAPIKey)),
		AppScriptID:          strings.TrimSpace(getenv(EnvAppScriptID)),
		OperatorPasswordHash: getenv(EnvOperatorHash),
		ResendKey:            getenv(EnvResendKey),
		EmailFrom:            orDefault(getenv(EnvEmailFrom), DefaultEmailFrom),
		EmailReplyTo:         getenv(EnvEmailReplyTo),
		SlowRequestMs:        DefaultSlowRequestMs,
		SlowQueryMs:          DefaultSlowQueryMs,
		PDFDisabled:          isTrue(getenv(EnvPDFDisabled)),
		UploadTimeout:        DefaultUploadTimeout,
		GenerateTimeout:      DefaultGenerateTimeout,
	}

	if keyHex := getenv(EnvCSRFKey); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return Config{}, ErrInvalidCSRFKey
		}
		cfg.CSRFKey = key
	} else if cfg.IsProduction() {
		return Config{}, fmt.Errorf("%s is required in production", EnvCSRFKey)
	}

	if v := getenv(EnvSlowRequestMs); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("%s must be a positive integer", EnvSlowRequestMs)
		}
		cfg.SlowRequestMs = n
	}
	if v := getenv(EnvSlowQueryMs); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, fmt.Errorf("%s must be a positive integer", EnvSlowQueryMs)
		}
		cfg.SlowQueryMs = n
	}
	for _, o := range strings.Split(getenv(EnvCORSOrigins), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}

	var err error
	if cfg.UploadTimeout, err = durationOr(getenv(EnvUploadTimeout), DefaultUploadTimeout); err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvUploadTimeout, err)
	}
	if cfg.GenerateTimeout, err = durationOr(getenv(EnvGenerateTimeout), DefaultGenerateTimeout); err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvGenerateTimeout, err)
	}
	if cfg.PlannerHTTPTimeout, err = durationOr(getenv(EnvPlannerHTTPTimeout), 0); err != nil {
		return Config{}, fmt.Errorf("%s: %w", EnvPlannerHTTPTimeout, err)
	}
	return cfg, nil
}

func durationOr(v string, def time.Duration) (time.Duration, error) {
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	return d, nil
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}

func isTrue(v string) bool {
	b, _ := strconv.ParseBool(v)
	return b
}
