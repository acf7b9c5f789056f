package config

import (
	"fmt"
	"net/url"
	"strings"
	"sync"
)

// BuiltinAPIBase is used when neither an override nor an environment default is set.
const BuiltinAPIBase = "https://sebbys15-demo-ai-recommendations.hf.space"

// BaseURL resolves the planner API base with precedence
// override > environment default > builtin.
// INVARIANT: Get never returns an empty string or a trailing slash
type BaseURL struct {
	mu       sync.RWMutex
	override string
	envBase  string
}

// NewBaseURL creates a provider with the given environment default and
// optional persisted override. Either may be empty.
func NewBaseURL(envBase, override string) *BaseURL {
	return &BaseURL{envBase: normalize(envBase), override: normalize(override)}
}

// Get returns the effective base URL.
func (b *BaseURL) Get() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch {
	case b.override != "":
		return b.override
	case b.envBase != "":
		return b.envBase
	default:
		return BuiltinAPIBase
	}
}

// Source names where Get's value comes from.
func (b *BaseURL) Source() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	switch {
	case b.override != "":
		return "override"
	case b.envBase != "":
		return "environment"
	default:
		return "builtin"
	}
}

// SetOverride validates and sets the override. An empty string clears it.
// PRE: raw is empty or an absolute http(s) URL
// POST: Get returns the new override, or the next source when cleared
func (b *BaseURL) SetOverride(raw string) error {
	raw = normalize(raw)
	if raw != "" {
		if err := ValidateBaseURL(raw); err != nil {
			return err
		}
	}
	b.mu.Lock()
	b.override = raw
	b.mu.Unlock()
	return nil
}

// ValidateBaseURL checks raw is an absolute http or https URL.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid api base %q: %w", raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api base %q: must be an absolute http(s) URL", raw)
	}
	return nil
}

func normalize(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), "/")
}
