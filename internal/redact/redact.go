// Package redact scrubs sensitive values from strings before they are
// logged or returned in error responses. Delivery errors are the main
// offender: SMTP rejections quote the recipient address, HTTP client errors
// embed the full publish URL (and an ntfy topic is a bearer capability), and
// store errors can carry connection strings or SQL fragments.
package redact

import (
	"regexp"
	"sync"
)

// Redaction placeholders.
const (
	RedactionPlaceholder          = "[REDACTED]"
	RedactedEmailPlaceholder      = "[REDACTED_EMAIL]"
	RedactedURLPlaceholder        = "[REDACTED_URL]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
)

// Precompiled patterns, applied in order. URLs are scrubbed before
// hostnames so a publish URL collapses to one placeholder instead of a
// host placeholder with the topic still attached.
var (
	// Connection strings (postgres DSNs, smtp URLs) with embedded credentials.
	dsnRegex = regexp.MustCompile(`(?i)(postgres|postgresql|mysql|sqlite|smtp|smtps)://[^\s'"]+`)

	// Any absolute URL. Push publish URLs end in the topic name, which grants
	// read access to everything published on it.
	urlRegex = regexp.MustCompile(`https?://[^\s'"]+`)

	// Credential fragments from config or auth errors.
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)

	// SQL queries and fragments surfacing from store errors.
	sqlRegex = regexp.MustCompile(
		`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE|INDEX)(?:[\s\w,*()='"]+)?`,
	)

	// Recipient addresses quoted back by SMTP servers.
	emailRegex = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)

	// Filesystem paths (sqlite database files, attachment directories).
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)

	// Bare host[:port] endpoints (mail servers, database hosts).
	hostPortRegex = regexp.MustCompile(
		`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`,
	)

	patterns = []*regexp.Regexp{
		dsnRegex, urlRegex, passwordRegex, sqlRegex,
		emailRegex, unixPathRegex, hostPortRegex,
	}

	patternPlaceholders = map[*regexp.Regexp]string{
		dsnRegex:      RedactedCredentialPlaceholder,
		urlRegex:      RedactedURLPlaceholder,
		passwordRegex: RedactedCredentialPlaceholder,
		sqlRegex:      "[REDACTED_SQL]",
		emailRegex:    RedactedEmailPlaceholder,
		unixPathRegex: RedactedPathPlaceholder,
		hostPortRegex: "[REDACTED_HOST]",
	}

	mu sync.RWMutex
)

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	mu.RLock()
	defer mu.RUnlock()

	result := input
	for _, pattern := range patterns {
		placeholder := RedactionPlaceholder
		if ph, ok := patternPlaceholders[pattern]; ok {
			placeholder = ph
		}
		result = pattern.ReplaceAllString(result, placeholder)
	}

	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}

	return String(err.Error())
}
