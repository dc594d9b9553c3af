// logger_helpers.go: helpers for classifying SQL statements and errors
// before they reach the logs and metrics.
package datastore

import (
	"regexp"
	"strings"
)

var (
	selectTableRegex = regexp.MustCompile(`(?i)FROM\s+[\x60"']?(\w+)[\x60"']?`)
	insertTableRegex = regexp.MustCompile(`(?i)INSERT\s+INTO\s+[\x60"']?(\w+)[\x60"']?`)
	updateTableRegex = regexp.MustCompile(`(?i)UPDATE\s+[\x60"']?(\w+)[\x60"']?`)
	deleteTableRegex = regexp.MustCompile(`(?i)DELETE\s+FROM\s+[\x60"']?(\w+)[\x60"']?`)
)

// parseSQLOperation extracts the operation and table name from a SQL
// statement for use as metric labels. Unrecognized statements are reported
// as "other"/"unknown" to keep label cardinality bounded.
func parseSQLOperation(sql string) (operation, table string) {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return "other", "unknown"
	}

	var tableRegex *regexp.Regexp
	switch {
	case hasPrefixFold(trimmed, "SELECT"):
		operation, tableRegex = "select", selectTableRegex
	case hasPrefixFold(trimmed, "INSERT"):
		operation, tableRegex = "insert", insertTableRegex
	case hasPrefixFold(trimmed, "UPDATE"):
		operation, tableRegex = "update", updateTableRegex
	case hasPrefixFold(trimmed, "DELETE"):
		operation, tableRegex = "delete", deleteTableRegex
	case hasPrefixFold(trimmed, "CREATE"), hasPrefixFold(trimmed, "ALTER"), hasPrefixFold(trimmed, "DROP"):
		return "ddl", "schema"
	case hasPrefixFold(trimmed, "PRAGMA"):
		return "pragma", "schema"
	default:
		return "other", "unknown"
	}

	if match := tableRegex.FindStringSubmatch(trimmed); len(match) > 1 {
		return operation, strings.ToLower(match[1])
	}
	return operation, "unknown"
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// categorizeError maps a database error onto a small set of metric label
// values. The matching is on message text because the sqlite and mysql
// drivers do not share error types.
func categorizeError(err error) string {
	if err == nil {
		return "none"
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "record not found"):
		return "not_found"
	case strings.Contains(msg, "unique constraint"), strings.Contains(msg, "duplicate entry"):
		return "constraint_violation"
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "lock wait timeout"):
		return "lock_contention"
	case strings.Contains(msg, "no such table"), strings.Contains(msg, "doesn't exist"):
		return "missing_table"
	case strings.Contains(msg, "connection"), strings.Contains(msg, "broken pipe"):
		return "connection"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "context deadline"):
		return "timeout"
	case strings.Contains(msg, "disk"), strings.Contains(msg, "no space"):
		return "storage"
	default:
		return "other"
	}
}
