package ratelimit

import "time"

// Named limiter presets. Each is an independent (window, max, prefix)
// tuple; nothing is shared between limiters built from them.

// GeneralAPI covers ordinary API traffic.
func GeneralAPI() Config {
	return Config{Window: time.Minute, MaxRequests: 100, KeyPrefix: "general"}
}

// Strict covers sensitive endpoints.
func Strict() Config {
	return Config{Window: time.Minute, MaxRequests: 20, KeyPrefix: "strict"}
}

// Auth covers authentication attempts. Fails closed: when the store is
// down we would rather lock out logins than admit a brute-force run.
func Auth() Config {
	return Config{Window: 15 * time.Minute, MaxRequests: 5, KeyPrefix: "auth", FailClosed: true}
}

// IntegrationSync covers source-control and chat sync jobs.
func IntegrationSync() Config {
	return Config{Window: time.Minute, MaxRequests: 30, KeyPrefix: "sync"}
}

// AIGeneration covers summary-generation calls, which are expensive
// upstream.
func AIGeneration() Config {
	return Config{Window: 5 * time.Minute, MaxRequests: 10, KeyPrefix: "ai"}
}

// Upload covers file uploads.
func Upload() Config {
	return Config{Window: 10 * time.Minute, MaxRequests: 20, KeyPrefix: "upload"}
}

// Preset returns the named preset config. Names match the
// RATE_LIMIT_<NAME>_* environment override keys.
func Preset(name string) (Config, bool) {
	switch name {
	case "GENERAL", "general":
		return GeneralAPI(), true
	case "STRICT", "strict":
		return Strict(), true
	case "AUTH", "auth":
		return Auth(), true
	case "SYNC", "sync":
		return IntegrationSync(), true
	case "AI", "ai":
		return AIGeneration(), true
	case "UPLOAD", "upload":
		return Upload(), true
	}
	return Config{}, false
}

// Override applies non-zero tuning values on top of a preset.
func Override(cfg Config, maxRequests, windowMs int) Config {
	if maxRequests > 0 {
		cfg.MaxRequests = maxRequests
	}
	if windowMs > 0 {
		cfg.Window = time.Duration(windowMs) * time.Millisecond
	}
	return cfg
}
