package ratelimit

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// EndpointConfig is the limit of one route. A Path ending in "/" matches by prefix.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int           // requests per Window
	Window time.Duration
	Burst  int // bucket capacity; Limit when 0
}

// LoadConfig reads the RATE_LIMIT_* environment variables. Unparseable values
// fall back to their defaults with a warning.
func LoadConfig() *Config {
	if !env("RATE_LIMIT_ENABLED", true, strconv.ParseBool) {
		return &Config{Enabled: false}
	}
	rules := DefaultEndpointConfigs()
	if spec := os.Getenv("RATE_LIMIT_RULES"); spec != "" {
		parsed, err := ParseRules(spec)
		if err != nil {
			log.Printf("[rate-limit] ignoring RATE_LIMIT_RULES: %v", err)
		} else {
			rules = mergeRules(rules, parsed)
		}
	}
	return &Config{
		Enabled:         true,
		DefaultLimit:    env("RATE_LIMIT_DEFAULT_LIMIT", 1000, strconv.Atoi),
		DefaultWindow:   env("RATE_LIMIT_DEFAULT_WINDOW", time.Minute, time.ParseDuration),
		CleanupInterval: env("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute, time.ParseDuration),
		IdleTTL:         env("RATE_LIMIT_IDLE_TTL", time.Hour, time.ParseDuration),
		Whitelist:       ipSet(os.Getenv("RATE_LIMIT_WHITELIST")),
		Blacklist:       ipSet(os.Getenv("RATE_LIMIT_BLACKLIST")),
		EndpointConfigs: rules,
	}
}

// DefaultEndpointConfigs returns the per-route limits of the API.
// Routes that call the model get hourly budgets.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/discover", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/ventures/prioritize", Method: "POST", Limit: 30, Window: time.Hour, Burst: 5},
		{Path: "/runs", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/runs/stream", Method: "POST", Limit: 10, Window: time.Hour, Burst: 2},
		{Path: "/plans/", Method: "POST", Limit: 20, Window: time.Hour, Burst: 3},

		// selections and task toggles
		{Path: "/runs/", Method: "POST", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/runs/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/plans/", Method: "PUT", Limit: 100, Window: time.Minute, Burst: 10},
		{Path: "/plans/", Method: "DELETE", Limit: 100, Window: time.Minute, Burst: 10},

		{Path: "/auth/", Method: "POST", Limit: 20, Window: time.Minute, Burst: 5},
	}
}

// ParseRules parses a comma-separated rule list such as
// "POST /discover=5/1h:2, POST /runs/=50/1m". The burst suffix is optional.
func ParseRules(spec string) ([]EndpointConfig, error) {
	var rules []EndpointConfig
	for _, item := range strings.Split(spec, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		route, budget, ok := strings.Cut(item, "=")
		method, path, okRoute := strings.Cut(strings.TrimSpace(route), " ")
		if !ok || !okRoute || !strings.HasPrefix(path, "/") {
			return nil, fmt.Errorf("rule %q: want \"METHOD /path=limit/window[:burst]\"", item)
		}
		rule := EndpointConfig{Method: strings.ToUpper(method), Path: strings.TrimSpace(path)}

		budget, burst, hasBurst := strings.Cut(budget, ":")
		limit, window, ok := strings.Cut(budget, "/")
		if !ok {
			return nil, fmt.Errorf("rule %q: missing window", item)
		}
		var err error
		if rule.Limit, err = strconv.Atoi(limit); err != nil || rule.Limit <= 0 {
			return nil, fmt.Errorf("rule %q: invalid limit %q", item, limit)
		}
		if rule.Window, err = time.ParseDuration(window); err != nil || rule.Window <= 0 {
			return nil, fmt.Errorf("rule %q: invalid window %q", item, window)
		}
		if hasBurst {
			if rule.Burst, err = strconv.Atoi(burst); err != nil || rule.Burst < 0 {
				return nil, fmt.Errorf("rule %q: invalid burst %q", item, burst)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// mergeRules replaces base rules with overrides of the same method and path and appends the rest.
func mergeRules(base, overrides []EndpointConfig) []EndpointConfig {
	out := append([]EndpointConfig(nil), base...)
next:
	for _, o := range overrides {
		for i := range out {
			if out[i].Method == o.Method && out[i].Path == o.Path {
				out[i] = o
				continue next
			}
		}
		out = append(out, o)
	}
	return out
}

func env[T any](key string, def T, parse func(string) (T, error)) T {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		log.Printf("[rate-limit] invalid %s=%q, using default", key, raw)
		return def
	}
	return v
}

func ipSet(list string) map[string]bool {
	set := make(map[string]bool)
	for _, ip := range strings.Split(list, ",") {
		if ip = strings.TrimSpace(ip); ip != "" {
			set[ip] = true
		}
	}
	return set
}
