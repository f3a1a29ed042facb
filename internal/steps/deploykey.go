package steps

import (
	"fmt"
	"regexp"
	"strings"

	"go_provision/internal/shellq"
	"go_provision/internal/sshx"
)

// DeployKeyInput carries the inputs for deploy key generation
type DeployKeyInput struct {
	ApplicationName string
	SelectedRepo    string // owner/repo
}

// HostAlias derives the per-repository SSH host alias used in ~/.ssh/config
func HostAlias(selectedRepo string) string {
	return "github.com-" + strings.ReplaceAll(selectedRepo, "/", "-")
}

// DeployKeyName derives the key file name for an application
func DeployKeyName(applicationName string) string {
	return "deploy_" + SanitizeName(applicationName) + "_ed25519"
}

// sshConfigBlock returns the marker-delimited config entry for one repo.
// Markers let re-runs replace the previous entry instead of appending
// duplicates.
func sshConfigBlock(selectedRepo, alias, keyPath string) string {
	return fmt.Sprintf(`# >>> provision deploy key %s >>>
Host %s
    HostName github.com
    User git
    IdentityFile %s
    IdentitiesOnly yes
# <<< provision deploy key %s <<<`, selectedRepo, alias, keyPath, selectedRepo)
}

// UpsertSSHConfigBlock removes any previous marker-delimited entry for the
// repo from the config content and appends a fresh one.
func UpsertSSHConfigBlock(content, selectedRepo, alias, keyPath string) string {
	pattern := regexp.MustCompile(
		`(?s)\n?# >>> provision deploy key ` + regexp.QuoteMeta(selectedRepo) + ` >>>.*?# <<< provision deploy key ` + regexp.QuoteMeta(selectedRepo) + ` <<<\n?`)
	cleaned := pattern.ReplaceAllString(content, "\n")
	cleaned = strings.TrimRight(cleaned, "\n")

	block := sshConfigBlock(selectedRepo, alias, keyPath)
	if cleaned == "" {
		return block + "\n"
	}
	return cleaned + "\n\n" + block + "\n"
}

// GenerateDeployKey creates an ED25519 deploy key on the remote host (skipped
// when the key files already exist), registers it as a read-only deploy key
// on the repository, rewrites the repo's ~/.ssh/config entry and tests
// authentication through the alias.
func GenerateDeployKey(run sshx.CommandRunner, gh GitHubClient, in DeployKeyInput) *Result {
	owner, repo, err := SplitRepo(in.SelectedRepo)
	if err != nil {
		return failure("invalid repository", err)
	}

	keyName := DeployKeyName(in.ApplicationName)
	keyPath := "$HOME/.ssh/" + keyName
	alias := HostAlias(in.SelectedRepo)

	if _, err := run.RunCommand("mkdir -p \"$HOME/.ssh\" && chmod 700 \"$HOME/.ssh\"", "prepare .ssh directory", timeoutQuick, false); err != nil {
		return failure("failed to prepare ~/.ssh", err)
	}

	// Idempotent: keep an existing key pair rather than rotating it.
	genCmd := fmt.Sprintf(`test -f "%s" || ssh-keygen -t ed25519 -f "%s" -N "" -C %s`,
		keyPath, keyPath, shellq.Quote("deploy:"+in.ApplicationName))
	if _, err := run.RunCommand(genCmd, "generate deploy key", timeoutKeyGen, false); err != nil {
		return failure("failed to generate deploy key", err)
	}

	pub, err := run.RunCommand(fmt.Sprintf(`cat "%s.pub"`, keyPath), "read deploy public key", timeoutQuick, false)
	if err != nil {
		return failure("failed to read deploy public key", err)
	}
	publicKey := strings.TrimSpace(pub.Stdout)
	if publicKey == "" {
		return failure("deploy public key is empty", fmt.Errorf("no content at %s.pub", keyName))
	}

	if _, err := gh.CreateDeployKey(owner, repo, "deploy-"+SanitizeName(in.ApplicationName), publicKey, true); err != nil {
		return failure("failed to register deploy key on GitHub", err)
	}

	// Read-modify-write of ~/.ssh/config; a missing file reads as empty.
	cfg, err := run.RunCommand(`cat "$HOME/.ssh/config" 2>/dev/null || true`, "read ssh config", timeoutQuick, false)
	if err != nil {
		return failure("failed to read ssh config", err)
	}
	updated := UpsertSSHConfigBlock(cfg.Stdout, in.SelectedRepo, alias, "~/.ssh/"+keyName)

	writeCmd := heredocWriteExpr(`"$HOME/.ssh/config"`, updated)
	if _, err := run.RunCommand(writeCmd+` && chmod 600 "$HOME/.ssh/config"`, "write ssh config", timeoutQuick, false); err != nil {
		return failure("failed to write ssh config", err)
	}

	// GitHub closes the channel with exit 1 even on successful deploy-key
	// auth, so tolerate non-zero and match on the banner instead.
	testCmd := fmt.Sprintf("ssh -T -o StrictHostKeyChecking=accept-new -o BatchMode=yes git@%s", alias)
	test, err := run.RunCommand(testCmd, "test deploy key authentication", timeoutGitTest, true)
	if err != nil {
		return failure("deploy key authentication test failed", err)
	}
	output := test.Stdout + test.Stderr
	connectionTested := strings.Contains(output, "successfully authenticated")
	if !connectionTested {
		return failure("deploy key authentication was rejected", fmt.Errorf("ssh test output: %s", excerpt(output, 500)))
	}

	return succeed("deploy key configured", map[string]interface{}{
		"deployKeyName":    keyName,
		"repository":       in.SelectedRepo,
		"hostAlias":        alias,
		"connectionTested": connectionTested,
	})
}
