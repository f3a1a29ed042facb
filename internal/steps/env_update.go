package steps

import (
	"fmt"
	"strings"

	"go_provision/internal/shellq"
	"go_provision/internal/sshx"
)

// EnvUpdateInput carries the inputs for env update
type EnvUpdateInput struct {
	Pathname string
	Database DatabaseInput
}

// UpdateEnv patches the DB_* keys of the deployed env file in place. The
// read-modify-write is idempotent because patching is keyed by line prefix,
// not position: re-running with the same inputs rewrites an identical file.
func UpdateEnv(run sshx.CommandRunner, in EnvUpdateInput) *Result {
	if err := shellq.ValidatePath("pathname", in.Pathname); err != nil {
		return failure("invalid pathname", err)
	}
	// An empty password is allowed here; the env file then carries a bare
	// DB_PASSWORD= line.
	if err := in.Database.ValidateForEnv(); err != nil {
		return failure("invalid database parameters", err)
	}

	filePath := strings.TrimRight(in.Pathname, "/") + "/shared/.env"
	quoted := shellq.Quote(filePath)

	existing, err := run.RunCommand(fmt.Sprintf("cat %s", quoted), "read env file", timeoutQuick, false)
	if err != nil {
		return failure("env file not found - run env setup first", err)
	}

	updates := BuildEnvUpdates(in.Database)
	patched := PatchEnvContent(existing.Stdout, updates)

	if _, err := run.RunCommand(heredocWrite(filePath, patched), "write env file", timeoutQuick, false); err != nil {
		return failure("failed to write env file", err)
	}

	verify, err := run.RunCommand(
		fmt.Sprintf("grep -c '^DB_' %s", quoted), "verify env update", timeoutQuick, true)
	if err != nil {
		return failure("failed to verify env update", err)
	}

	applied := make([]string, 0, len(envUpdateOrder))
	for _, key := range envUpdateOrder {
		if _, ok := updates[key]; ok {
			applied = append(applied, key)
		}
	}

	return succeed("env file updated", map[string]interface{}{
		"filePath": filePath,
		"updates":  applied,
		"verification": map[string]interface{}{
			"dbKeys": strings.TrimSpace(verify.Stdout),
		},
	})
}
