package logging

import (
	"errors"
	"strings"
	"testing"
)

func TestSanitizeURL(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "verification key in query",
			input:    "https://api.neverbounce.com/v4/single/check?email=a%40b.com&key=secret_abc123",
			expected: "https://api.neverbounce.com/v4/single/check?email=a%40b.com&key=[REDACTED]",
		},
		{
			name:     "key first",
			input:    "https://api.neverbounce.com/v4/single/check?key=secret_abc123&email=a%40b.com",
			expected: "https://api.neverbounce.com/v4/single/check?key=[REDACTED]&email=a%40b.com",
		},
		{
			name:     "api_key variant",
			input:    "http://localhost/check?api_key=short",
			expected: "http://localhost/check?api_key=[REDACTED]",
		},
		{
			name:     "userinfo credentials",
			input:    "postgres://cleanlist:hunter2@db:5432/cleanlist",
			expected: "postgres://[REDACTED]@db:5432/cleanlist",
		},
		{
			name:     "port is not mistaken for a password",
			input:    "https://api.neverbounce.com:443/v4/single/check",
			expected: "https://api.neverbounce.com:443/v4/single/check",
		},
		{
			name:     "word ending in key is left alone",
			input:    "http://localhost/check?monkey=1",
			expected: "http://localhost/check?monkey=1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeURL(tt.input)
			if result != tt.expected {
				t.Errorf("SanitizeURL() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestSanitizeError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{
			name:     "nil error",
			err:      nil,
			expected: "",
		},
		{
			name: "http client error embeds url",
			err: errors.New(`Post "https://api.neverbounce.com/v4/single/check?email=x%40y.z&key=private_123": context deadline exceeded`),
			expected: `Post "https://api.neverbounce.com/v4/single/check?email=x%40y.z&key=[REDACTED]": context deadline exceeded`,
		},
		{
			name:     "connection string password",
			err:      errors.New("failed to connect: host=db password=secret dbname=x"),
			expected: "failed to connect: host=db password=[REDACTED] dbname=x",
		},
		{
			name:     "no sensitive data",
			err:      errors.New("template not found"),
			expected: "template not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SanitizeError(tt.err)
			if result != tt.expected {
				t.Errorf("SanitizeError() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestMaskSecret(t *testing.T) {
	if got := MaskSecret("abc"); got != RedactedText {
		t.Errorf("MaskSecret(short) = %q, want %q", got, RedactedText)
	}
	got := MaskSecret("secret_key_9876")
	if !strings.HasSuffix(got, "9876") || strings.Contains(got, "secret") {
		t.Errorf("MaskSecret() = %q, want redacted prefix and last four characters", got)
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		input    string
		maxLen   int
		expected string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is longer", 4, "this..."},
		{"", 3, ""},
	}

	for _, tt := range tests {
		if got := TruncateString(tt.input, tt.maxLen); got != tt.expected {
			t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.expected)
		}
	}
}
