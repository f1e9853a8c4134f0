// Package redact scrubs credentials and session tokens out of text before it
// reaches logs, API responses, or error values.
package redact

import (
	"regexp"
	"sort"
	"strings"
)

// Placeholder replaces every redacted secret value.
const Placeholder = "[REDACTED]"

// URLPlaceholder replaces a whole URL that carries a session token.
const URLPlaceholder = "[URL_REDACTED]"

// Pattern is a named redaction rule.
type Pattern struct {
	Name        string
	Regex       *regexp.Regexp
	Replacement string
}

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@]+)(@)`)

// Credential keys are matched anywhere in an identifier, so prefixed forms
// such as user_password, jetnetApiToken or login_emailaddress are caught.
const (
	tokenKey    = `((?:api|bearer|access|security)_?token)`
	passwordKey = `(passw(?:or)?d)`
	emailKey    = `(e-?mail_?address)`
)

// keyValue builds the rules for one credential key: a double-quoted value
// (spaces included), a single-quoted value, then a bare value. Each keeps the
// key, separator and quotes.
func keyValue(name, key string) []Pattern {
	return []Pattern{
		{
			Name:        name + "_dquoted",
			Regex:       regexp.MustCompile(`(?i)` + key + `("?\s*[=:]\s*)"[^"]*"`),
			Replacement: `${1}${2}"` + Placeholder + `"`,
		},
		{
			Name:        name + "_squoted",
			Regex:       regexp.MustCompile(`(?i)` + key + `('?\s*[=:]\s*)'[^']*'`),
			Replacement: `${1}${2}'` + Placeholder + `'`,
		},
		{
			Name:        name,
			Regex:       regexp.MustCompile(`(?i)` + key + `(["']?\s*[=:]\s*)[^"'\s,;&}]+`),
			Replacement: "${1}${2}" + Placeholder,
		},
	}
}

// patterns is applied in order. Key/value rules keep the key and separator so
// the surrounding context stays readable.
var patterns = buildPatterns()

func buildPatterns() []Pattern {
	out := []Pattern{
		{
			Name:        "bearer_token",
			Regex:       regexp.MustCompile(`(?i)\bbearer\s+[\w\-.~+/=]+`),
			Replacement: "Bearer " + Placeholder,
		},
	}
	out = append(out, keyValue("token_value", tokenKey)...)
	out = append(out,
		Pattern{
			Name:        "token_url",
			Regex:       regexp.MustCompile(`(?i)https?://[^\s"'<>]*token[^\s"'<>]*`),
			Replacement: URLPlaceholder,
		},
		Pattern{
			// Session keys appended as the trailing path segment of a vendor URL.
			Name:        "session_url",
			Regex:       regexp.MustCompile(`(?i)https?://[^\s"'<>]*/[A-Za-z0-9\-_]{24,}(?:[?#][^\s"'<>]*)?`),
			Replacement: URLPlaceholder,
		},
	)
	out = append(out, keyValue("password", passwordKey)...)
	out = append(out, keyValue("email_address", emailKey)...)
	return out
}

// Patterns returns a copy of the active redaction table.
func Patterns() []Pattern {
	out := make([]Pattern, len(patterns))
	copy(out, patterns)
	return out
}

// Sanitize redacts bearer tokens, api/session tokens, token-bearing URLs,
// passwords and login email addresses from s. Matching is case-insensitive and
// the result is stable under repeated application.
func Sanitize(s string) string {
	if s == "" {
		return s
	}
	for _, p := range patterns {
		s = p.Regex.ReplaceAllString(s, p.Replacement)
	}
	return s
}

// minSecretLen keeps short values such as "1" or "abc" from blanking out
// unrelated text.
const minSecretLen = 4

// SanitizeWith replaces every literal occurrence of the given secrets before
// applying the pattern table. Use it when the live secret values are known,
// e.g. an api token that travels as a bare URL path segment.
func SanitizeWith(s string, secrets ...string) string {
	if s == "" {
		return s
	}
	known := make([]string, 0, len(secrets))
	for _, sec := range secrets {
		if len(sec) >= minSecretLen {
			known = append(known, sec)
		}
	}
	// Longest first so a secret that contains another is replaced whole.
	sort.Slice(known, func(i, j int) bool { return len(known[i]) > len(known[j]) })
	for _, sec := range known {
		s = strings.ReplaceAll(s, sec, Placeholder)
	}
	return Sanitize(s)
}

// MaskDSN hides the password portion of a connection string.
func MaskDSN(dsn string) string {
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}
