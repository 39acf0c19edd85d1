package validation

import (
	"net/url"
	"strings"

	apperrors "github.com/itsadi-24/smart-note/internal/errors"
)

// OriginValidator checks entries of a CORS allow-list. A browser Origin is
// scheme://host[:port] with nothing after it, so anything else can never match.
type OriginValidator struct {
	allowedSchemes []string
}

// NewOriginValidator creates an origin validator accepting http and https
func NewOriginValidator() *OriginValidator {
	return &OriginValidator{
		allowedSchemes: []string{"http", "https"},
	}
}

// ValidateOrigin validates a single allow-list entry
func (v *OriginValidator) ValidateOrigin(origin string) error {
	if strings.TrimSpace(origin) == "" {
		return apperrors.NewValidationError("origin cannot be empty", nil)
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return apperrors.NewValidationError("invalid origin format", err)
	}

	if !v.isSchemeAllowed(parsed.Scheme) {
		return apperrors.NewValidationError("origin scheme not allowed", nil)
	}

	if parsed.Host == "" {
		return apperrors.NewValidationError("origin must have a valid host", nil)
	}

	if parsed.User != nil || (parsed.Path != "" && parsed.Path != "/") || parsed.RawQuery != "" || parsed.Fragment != "" {
		return apperrors.NewValidationError("origin must not contain credentials, path, query or fragment", nil)
	}

	return nil
}

// ValidateOrigins validates every entry and returns the list normalized
// (trimmed, trailing slash removed, duplicates dropped, order kept).
func (v *OriginValidator) ValidateOrigins(origins []string) ([]string, error) {
	if len(origins) == 0 {
		return nil, apperrors.NewValidationError("at least one allowed origin is required", nil)
	}

	seen := make(map[string]struct{}, len(origins))
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if err := v.ValidateOrigin(o); err != nil {
			return nil, err
		}
		if _, dup := seen[o]; dup {
			continue
		}
		seen[o] = struct{}{}
		out = append(out, o)
	}
	return out, nil
}

// isSchemeAllowed checks if the origin scheme is in the allowed list
func (v *OriginValidator) isSchemeAllowed(scheme string) bool {
	for _, allowed := range v.allowedSchemes {
		if scheme == allowed {
			return true
		}
	}
	return false
}
