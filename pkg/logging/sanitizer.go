package logging

import (
	"regexp"
)

const (
	// MaxValueLogLength is the maximum length of a cell value to log
	MaxValueLogLength = 64
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
)

var (
	// Pattern to match API keys in query strings or messages, any length.
	// Matches: key=xxx, api_key=xxx, apikey=xxx (until next delimiter)
	apiKeyPattern = regexp.MustCompile(`(?i)\b(api[_-]?key|apikey|key)=[^&\s"']+`)

	// Pattern to match potential passwords in connection strings
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// Pattern to match connection string credentials (user:pass@host format)
	connStringPattern = regexp.MustCompile(`://[^:/\s]+:[^@/\s]+@`)
)

// SanitizeURL redacts secret query parameters (the verification API key) and
// userinfo credentials from a URL before it is logged.
func SanitizeURL(raw string) string {
	if raw == "" {
		return ""
	}

	sanitized := apiKeyPattern.ReplaceAllString(raw, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")

	return sanitized
}

// SanitizeError sanitizes error messages that might contain sensitive data.
// net/http errors embed the full request URL, including the API key.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := apiKeyPattern.ReplaceAllString(err.Error(), "${1}="+RedactedText)
	sanitized = passwordPattern.ReplaceAllString(sanitized, "${1}="+RedactedText)
	sanitized = connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")

	return sanitized
}

// MaskSecret keeps the last four characters of a secret for correlation.
func MaskSecret(secret string) string {
	if len(secret) <= 4 {
		return RedactedText
	}
	return RedactedText + secret[len(secret)-4:]
}

// TruncateString truncates a string to maxLen and adds ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
