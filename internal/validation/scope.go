package validation

import (
	"regexp"
	"strings"
)

// Scope name rules:
// - Lowercase only.
// - Start and end with [a-z0-9].
// - Middle chars may include [a-z0-9:_.-].
// - Length 1..64.
// - Excludes semicolon and whitespace explicitly.
//
// Examples valid: openid, profile, tasks:read, a_b-c.d:scope2
// Examples invalid: ;hack, BAD, bad space, :leader, trailer:, "", 65+ chars.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName returns true if the provided scope name matches the allowed pattern.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// SplitScope parte un scope string espacio-separado en nombres, sin vacíos.
func SplitScope(s string) []string {
	return strings.Fields(s)
}

// ScopeSubset reporta si cada scope de requested está presente en granted.
// Requested vacío cuenta como subset (hereda el scope original).
func ScopeSubset(requested, granted []string) bool {
	if len(requested) == 0 {
		return true
	}
	set := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		set[g] = struct{}{}
	}
	for _, r := range requested {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

// HasScope busca un scope puntual en una lista.
func HasScope(scopes []string, want string) bool {
	for _, s := range scopes {
		if s == want {
			return true
		}
	}
	return false
}
