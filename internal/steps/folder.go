package steps

import (
	"fmt"

	"go_provision/internal/shellq"
	"go_provision/internal/sshx"
)

// FolderInput carries the inputs for folder setup
type FolderInput struct {
	Username string
	Pathname string
}

// SetupFolder creates the application directory tree and hands ownership to
// the deploy user. mkdir -p / chown -R / chmod -R are all repeatable, so
// re-running converges to the same state. A sudo check runs first so a host
// that would prompt for a password fails fast instead of hanging.
func SetupFolder(run sshx.CommandRunner, in FolderInput) *Result {
	if err := shellq.ValidatePath("pathname", in.Pathname); err != nil {
		return failure("invalid pathname", err)
	}
	if err := shellq.ValidateUnixName("username", in.Username); err != nil {
		return failure("invalid username", err)
	}

	if _, err := run.RunCommand("sudo -n true", "sudo check", timeoutSudoCheck, false); err != nil {
		return failure("passwordless sudo is not available for this user", err)
	}

	path := shellq.Quote(in.Pathname)
	owner := in.Username

	commands := []struct {
		cmd   string
		label string
	}{
		{fmt.Sprintf("sudo mkdir -p %s/shared", path), "create application directory"},
		{fmt.Sprintf("sudo chown -R %s:%s %s", owner, owner, path), "set directory ownership"},
		{fmt.Sprintf("sudo chmod -R 755 %s", path), "set directory permissions"},
	}

	for _, c := range commands {
		if _, err := run.RunCommand(c.cmd, c.label, timeoutQuick, false); err != nil {
			return failure("folder setup failed", err)
		}
	}

	return succeed("folder created", map[string]interface{}{
		"pathname": in.Pathname,
		"owner":    owner,
	})
}
