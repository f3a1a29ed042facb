package steps

import (
	"fmt"
	"strings"

	"go_provision/internal/model"
)

// envExampleBranches and envExamplePaths are the fetch candidates for a
// repository's example env file, tried in order.
var (
	envExampleBranches = []string{"main", "master"}
	envExamplePaths    = []string{
		".env.example",
		".env.sample",
		"config/.env.example",
		"laravel/.env.example",
	}
)

// DBConnectionValue maps a database type to Laravel's DB_CONNECTION value
func DBConnectionValue(dbType string) string {
	if strings.ToLower(dbType) == model.DBTypePostgreSQL {
		return "pgsql"
	}
	return "mysql"
}

// BuildEnvUpdates derives the DB_* key set the env-update step patches in
func BuildEnvUpdates(in DatabaseInput) map[string]string {
	return map[string]string{
		"DB_CONNECTION": DBConnectionValue(in.DBType),
		"DB_HOST":       "localhost",
		"DB_PORT":       fmt.Sprintf("%d", in.DefaultPort()),
		"DB_DATABASE":   in.DBName,
		"DB_USERNAME":   in.DBUsername,
		"DB_PASSWORD":   in.DBPassword,
	}
}

// envUpdateOrder keeps patched output deterministic for appended keys
var envUpdateOrder = []string{
	"DB_CONNECTION", "DB_HOST", "DB_PORT", "DB_DATABASE", "DB_USERNAME", "DB_PASSWORD",
}

// PatchEnvContent patches recognized KEY= lines in place and appends any
// missing keys at the end. Unrecognized lines, comments and blank lines are
// preserved byte-for-byte, so the patch is idempotent: patching already
// patched content yields identical output.
func PatchEnvContent(content string, updates map[string]string) string {
	trailingNewline := strings.HasSuffix(content, "\n") || content == ""
	lines := strings.Split(strings.TrimSuffix(content, "\n"), "\n")
	if content == "" {
		lines = nil
	}

	seen := map[string]bool{}
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, _, ok := strings.Cut(trimmed, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if value, wanted := updates[key]; wanted {
			lines[i] = key + "=" + value
			seen[key] = true
		}
	}

	for _, key := range envUpdateOrder {
		value, wanted := updates[key]
		if !wanted || seen[key] {
			continue
		}
		lines = append(lines, key+"="+value)
	}

	out := strings.Join(lines, "\n")
	if trailingNewline || len(lines) > 0 {
		out += "\n"
	}
	return out
}
