package proxy

import (
	"net/http"
	"strings"

	"github.com/libdine/libdine/internal/config"
)

// Rule interface for matching requests against caching rules
type Rule interface {
	Match(requ *http.Request) bool
}

// ConfigRule implements Rule interface for config-based rules
type ConfigRule struct {
	config.CacheRule
}

// Match checks if a request matches this rule
func (r *ConfigRule) Match(requ *http.Request) bool {
	// Check if URL starts with base URI
	if !strings.HasPrefix(getTargetURL(requ), r.BaseURI) {
		return false
	}

	// Check if method matches
	for _, m := range r.Methods {
		if strings.EqualFold(m, requ.Method) {
			return true
		}
	}

	return false
}

func rulesFromConfig(cfg *config.Config) []Rule {
	rules := make([]Rule, 0, len(cfg.Rules.Rules))
	for _, r := range cfg.Rules.Rules {
		rules = append(rules, &ConfigRule{CacheRule: r})
	}
	return rules
}
