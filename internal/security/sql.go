// Package security provides identifier validation and LIKE escaping for dynamic queries
package security

import (
	"fmt"
	"regexp"
	"strings"
)

// ValidIdentifierRegex matches the column and table names the engine accepts.
// Only lowercase letters, digits, and underscores, starting with a letter or underscore.
var ValidIdentifierRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ValidateIdentifier checks if a string is a valid SQL identifier
func ValidateIdentifier(name string) error {
	if name == "" {
		return fmt.Errorf("identifier cannot be empty")
	}
	if len(name) > 63 {
		return fmt.Errorf("identifier too long (max 63 characters)")
	}
	if !ValidIdentifierRegex.MatchString(name) {
		return fmt.Errorf("invalid identifier %q: must contain only lowercase letters, numbers, and underscores, starting with a letter or underscore", name)
	}
	return nil
}

// EscapeLikePattern escapes special characters in LIKE patterns
func EscapeLikePattern(pattern string) string {
	// Escape the special characters used in SQL LIKE: %, _, and \
	pattern = strings.ReplaceAll(pattern, `\`, `\\`)
	pattern = strings.ReplaceAll(pattern, `%`, `\%`)
	pattern = strings.ReplaceAll(pattern, `_`, `\_`)
	return pattern
}

// ContainsPattern returns a lower-cased, escaped pattern matching term anywhere in a value
func ContainsPattern(term string) string {
	return "%" + EscapeLikePattern(strings.ToLower(term)) + "%"
}

// LikeEscapeClause returns the ESCAPE clause to append to a LIKE predicate for a dialect.
// MySQL already treats backslash as the LIKE escape and rejects '\' as a literal.
func LikeEscapeClause(dialect string) string {
	if dialect == "mysql" {
		return ""
	}
	return ` ESCAPE '\'`
}
