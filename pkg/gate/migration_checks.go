package gate

import (
	"fmt"
	"regexp"
	"strings"
)

// Issue is one static-analysis finding against a migration file.
type Issue struct {
	File      string
	Line      int
	Statement string
	Suggestion string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s:%d: %s (%s)", i.File, i.Line, strings.TrimSpace(i.Statement), i.Suggestion)
}

var (
	createTableRe = regexp.MustCompile(`(?i)CREATE\s+TABLE\b`)
	createIndexRe = regexp.MustCompile(`(?i)CREATE\s+(UNIQUE\s+)?INDEX\b`)
	ifNotExistsRe = regexp.MustCompile(`(?i)IF\s+NOT\s+EXISTS`)
	deleteFromRe  = regexp.MustCompile(`(?i)\bDELETE\s+FROM\s+(\S+)`)
	truncateRe    = regexp.MustCompile(`(?i)\bTRUNCATE\s+(?:TABLE\s+)?(\S+)`)
	dropColumnRe  = regexp.MustCompile(`(?i)DROP\s+COLUMN\b`)
	renameColumnRe = regexp.MustCompile(`(?i)RENAME\s+COLUMN\b`)
	alterTypeRe   = regexp.MustCompile(`(?i)ALTER\s+COLUMN\s+\S+\s+TYPE\b`)
	concurrentlyRe = regexp.MustCompile(`(?i)CONCURRENTLY`)
)

// systemTableAllowList is exempt from the G7 hard-delete check: tables the
// migration framework itself owns, never a product's business data.
var systemTableAllowList = map[string]bool{
	"schema_migrations": true,
	"seaql_migrations":  true,
	"_sqlx_migrations":  true,
}

func trimTableName(name string) string {
	name = strings.Trim(name, "\"`;")
	return strings.ToLower(name)
}

// CheckIdempotency implements G6: every CREATE TABLE/INDEX/UNIQUE INDEX
// must be guarded with IF NOT EXISTS.
func CheckIdempotency(file, content string) []Issue {
	var issues []Issue
	for lineNum, line := range splitLinesKeepEmpty(content) {
		trimmed := strings.TrimSpace(line)
		switch {
		case createTableRe.MatchString(trimmed) && !ifNotExistsRe.MatchString(trimmed):
			issues = append(issues, Issue{file, lineNum + 1, trimmed, "use CREATE TABLE IF NOT EXISTS"})
		case createIndexRe.MatchString(trimmed) && !ifNotExistsRe.MatchString(trimmed):
			issues = append(issues, Issue{file, lineNum + 1, trimmed, "use CREATE INDEX IF NOT EXISTS"})
		}
	}
	return issues
}

// CheckSoftDeleteCompliance implements G7: flag hard DELETE/TRUNCATE
// against any table not in the system allow-list.
func CheckSoftDeleteCompliance(file, content string) []Issue {
	var issues []Issue
	for lineNum, line := range splitLinesKeepEmpty(content) {
		trimmed := strings.TrimSpace(line)
		if m := deleteFromRe.FindStringSubmatch(trimmed); m != nil {
			if !systemTableAllowList[trimTableName(m[1])] {
				issues = append(issues, Issue{file, lineNum + 1, trimmed, "use a soft-delete (deleted_at) pattern instead of DELETE FROM"})
			}
		}
		if m := truncateRe.FindStringSubmatch(trimmed); m != nil {
			if !systemTableAllowList[trimTableName(m[1])] {
				issues = append(issues, Issue{file, lineNum + 1, trimmed, "TRUNCATE removes all data permanently; use a soft-delete pattern"})
			}
		}
	}
	return issues
}

// ManifestClassification is the migration's declared risk class, read
// from its manifest entry (G8b).
type ManifestClassification string

const (
	ClassificationSchemaOnly     ManifestClassification = "schema_only"
	ClassificationSchemaAndData  ManifestClassification = "schema_and_data"
)

// CheckSchemaMigrationSafety implements G8: DROP COLUMN, RENAME COLUMN,
// ALTER COLUMN TYPE, and CREATE INDEX without CONCURRENTLY all require
// the expand-contract pattern, signalled by an explicit
// schema_and_data classification with sign-off.
func CheckSchemaMigrationSafety(file, content string, classification ManifestClassification, signedOff bool) []Issue {
	exempt := classification == ClassificationSchemaAndData && signedOff
	if exempt {
		return nil
	}
	var issues []Issue
	for lineNum, line := range splitLinesKeepEmpty(content) {
		trimmed := strings.TrimSpace(line)
		switch {
		case dropColumnRe.MatchString(trimmed):
			issues = append(issues, Issue{file, lineNum + 1, trimmed, "DROP COLUMN requires the expand-contract pattern"})
		case renameColumnRe.MatchString(trimmed):
			issues = append(issues, Issue{file, lineNum + 1, trimmed, "RENAME COLUMN requires the expand-contract pattern"})
		case alterTypeRe.MatchString(trimmed):
			issues = append(issues, Issue{file, lineNum + 1, trimmed, "ALTER COLUMN TYPE requires the expand-contract pattern"})
		case createIndexRe.MatchString(trimmed) && !concurrentlyRe.MatchString(trimmed):
			issues = append(issues, Issue{file, lineNum + 1, trimmed, "CREATE INDEX without CONCURRENTLY locks the table; add CONCURRENTLY or sign off schema_and_data"})
		}
	}
	return issues
}

// CheckManifestCompleteness implements G8b: every migration file present
// on disk must have a corresponding manifest entry.
func CheckManifestCompleteness(files []string, manifest map[string]ManifestClassification) []Issue {
	var issues []Issue
	for _, f := range files {
		if _, ok := manifest[f]; !ok {
			issues = append(issues, Issue{File: f, Suggestion: "missing manifest entry classifying this migration"})
		}
	}
	return issues
}

func splitLinesKeepEmpty(s string) []string {
	return strings.Split(s, "\n")
}
