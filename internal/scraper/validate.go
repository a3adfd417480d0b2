package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/govchat-nl/policyscan/internal/hash/sha256"
)

// ValidationError reports a malformed configuration or metadata value.
// Validation failures are terminal: they are never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ValidateURL checks that raw is an absolute http or https URL with a host.
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return &ValidationError{Field: "url", Reason: "must not be empty"}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return &ValidationError{Field: "url", Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &ValidationError{Field: "url", Reason: fmt.Sprintf("scheme %q not allowed, expected http or https", u.Scheme)}
	}
	if u.Host == "" {
		return &ValidationError{Field: "url", Reason: "must have a host"}
	}
	return nil
}

// ValidateRateLimit checks the requests-per-second bound shared by all plugins.
func ValidateRateLimit(rps int) error {
	if rps < MinRateLimit {
		return &ValidationError{Field: "rate_limit", Reason: fmt.Sprintf("must be at least %d request per second", MinRateLimit)}
	}
	if rps > MaxRateLimit {
		return &ValidationError{Field: "rate_limit", Reason: fmt.Sprintf("must not exceed %d requests per second", MaxRateLimit)}
	}
	return nil
}

// ValidateSelector rejects obviously malformed CSS selectors.
func ValidateSelector(sel string) error {
	if strings.TrimSpace(sel) == "" {
		return &ValidationError{Field: "selector", Reason: "must not be empty"}
	}
	if strings.Count(sel, "(") != strings.Count(sel, ")") {
		return &ValidationError{Field: "selector", Reason: "unbalanced parentheses"}
	}
	if strings.Count(sel, "[") != strings.Count(sel, "]") {
		return &ValidationError{Field: "selector", Reason: "unbalanced brackets"}
	}
	return nil
}

// NormalizeURL resolves raw against base, handling absolute,
// protocol-relative, and relative forms.
func NormalizeURL(raw, base string) string {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return raw
	}
	if strings.HasPrefix(raw, "//") {
		if b, err := url.Parse(base); err == nil {
			return b.Scheme + ":" + raw
		}
		return "https:" + raw
	}
	b, err := url.Parse(base)
	if err != nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return b.ResolveReference(ref).String()
}

// ExternalID derives a stable source identifier from a document URL:
// the first 32 hex characters of the URL's SHA-256 digest.
func ExternalID(rawURL string) string {
	return sha256.Sum([]byte(rawURL))[:32]
}

// ContentHash returns the canonical deduplication key for document content:
// the full lowercase hex SHA-256 digest (64 characters).
func ContentHash(content []byte) string {
	return sha256.Sum(content)
}

var dateFormats = []struct {
	pattern *regexp.Regexp
	layout  string
}{
	{regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), "2006-01-02"},
	{regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`), "02-01-2006"},
	{regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), "02/01/2006"},
}

// ParseDate parses a calendar date in YYYY-MM-DD, DD-MM-YYYY, or DD/MM/YYYY
// form. The day-first forms follow Dutch publication conventions.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, &ValidationError{Field: "date", Reason: "must not be empty"}
	}
	for _, f := range dateFormats {
		if f.pattern.MatchString(s) {
			t, err := time.Parse(f.layout, s)
			if err != nil {
				return time.Time{}, &ValidationError{Field: "date", Reason: err.Error()}
			}
			return t, nil
		}
	}
	return time.Time{}, &ValidationError{
		Field:  "date",
		Reason: fmt.Sprintf("%q does not match YYYY-MM-DD, DD-MM-YYYY, or DD/MM/YYYY", s),
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// NormalizeMunicipality trims and collapses whitespace in a municipality
// name. An empty result is returned as the empty string, not an error.
func NormalizeMunicipality(name string) (string, error) {
	normalized := strings.TrimSpace(name)
	if normalized == "" {
		return "", nil
	}
	if len(normalized) > maxMunicipalityLength {
		return "", &ValidationError{Field: "municipality", Reason: fmt.Sprintf("exceeds %d characters", maxMunicipalityLength)}
	}
	return whitespaceRun.ReplaceAllString(normalized, " "), nil
}

// TypeFromURL infers a document type from a URL or filename extension.
func TypeFromURL(rawURL string) DocumentType {
	lower := strings.ToLower(rawURL)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return TypePDF
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return TypeHTML
	case strings.HasSuffix(lower, ".docx"), strings.HasSuffix(lower, ".doc"):
		return TypeDOCX
	case strings.HasSuffix(lower, ".xlsx"), strings.HasSuffix(lower, ".xls"):
		return TypeXLSX
	default:
		return TypeUnknown
	}
}

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// SanitizeFilename strips path traversal and unsafe characters from a
// filename and bounds its length.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, `\`, "_")
	name = strings.ReplaceAll(name, "\x00", "")
	name = unsafeFilenameChars.ReplaceAllString(name, "_")
	if len(name) > 255 {
		if dot := strings.LastIndex(name, "."); dot > 0 {
			stem, ext := name[:dot], name[dot:]
			if len(stem) > 250 {
				stem = stem[:250]
			}
			name = stem + ext
		} else {
			name = name[:250]
		}
	}
	return name
}
