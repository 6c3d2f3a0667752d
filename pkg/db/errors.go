package db

import "strings"

// IsUniqueViolation reports whether err is a Postgres unique constraint
// failure. Pass a constraint name to match one index specifically, or
// empty to match any duplicate-key error.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	if constraintName != "" {
		return strings.Contains(err.Error(), constraintName)
	}
	return strings.Contains(err.Error(), "duplicate key value")
}
