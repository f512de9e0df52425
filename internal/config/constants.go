package config

import "time"

// Timeout constants
const (
	// HTTP timeouts
	DefaultHTTPTimeout = 60 * time.Second
	AIRequestTimeout   = 2 * time.Minute

	// Database timeouts
	DatabaseConnMaxLifetime = 5 * time.Minute

	// Session timeouts
	SessionMaxAge = 7 * 24 * time.Hour // 7 days
)

// Session configuration constants
const (
	SessionPath     = "/"
	SessionHTTPOnly = true
	SessionSecure   = false // Set to true in production with HTTPS

	SessionName = "utopai-session"
)

// Security configuration constants
const (
	// Content Security Policy
	DefaultCSP = "default-src 'self'; style-src 'self' 'unsafe-inline'; script-src 'self' 'unsafe-inline'; img-src 'self' data:; media-src 'self' blob: data:;"
)

// AI service constants
const (
	DefaultOpenAIURL       = "https://api.openai.com/v1"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultMaxAIConcurrent = 8

	// Token budgets per content kind
	ContentMaxTokens    = 500
	EvaluationMaxTokens = 300
	ChatMaxTokens       = 300

	ContentTemperature    = 0.8
	EvaluationTemperature = 0.3
	ChatTemperature       = 0.7
)
