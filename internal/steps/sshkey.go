package steps

import (
	"fmt"
	"strings"

	"go_provision/internal/github"
	"go_provision/internal/shellq"
	"go_provision/internal/sshx"
)

// SSHKeyInput carries the inputs for the CI key setup
type SSHKeyInput struct {
	ApplicationName string
	SelectedRepo    string // owner/repo
}

// SecretName derives the GitHub Actions secret name for an application:
// every non-alphanumeric rune becomes an underscore, uppercased. The
// derivation is deterministic, so repeated runs overwrite the same secret.
func SecretName(applicationName string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(applicationName) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return "PRIVATE_KEY_" + b.String()
}

// CIKeyName derives the CI key file name for an application
func CIKeyName(applicationName string) string {
	return "ci_" + SanitizeName(applicationName) + "_ed25519"
}

// SetupSSHKey provisions a CI-specific ED25519 key: generated on the remote
// host (kept if present), authorized for login, and the private half stored
// as a sealed GitHub Actions secret so workflows can deploy over SSH.
func SetupSSHKey(run sshx.CommandRunner, gh GitHubClient, in SSHKeyInput) *Result {
	owner, repo, err := SplitRepo(in.SelectedRepo)
	if err != nil {
		return failure("invalid repository", err)
	}

	keyName := CIKeyName(in.ApplicationName)
	keyPath := "$HOME/.ssh/" + keyName
	secretName := SecretName(in.ApplicationName)

	if _, err := run.RunCommand("mkdir -p \"$HOME/.ssh\" && chmod 700 \"$HOME/.ssh\"", "prepare .ssh directory", timeoutQuick, false); err != nil {
		return failure("failed to prepare ~/.ssh", err)
	}

	genCmd := fmt.Sprintf(`test -f "%s" || ssh-keygen -t ed25519 -f "%s" -N "" -C %s`,
		keyPath, keyPath, shellq.Quote("ci:"+in.ApplicationName))
	if _, err := run.RunCommand(genCmd, "generate CI key", timeoutKeyGen, false); err != nil {
		return failure("failed to generate CI key", err)
	}

	pub, err := run.RunCommand(fmt.Sprintf(`cat "%s.pub"`, keyPath), "read CI public key", timeoutQuick, false)
	if err != nil {
		return failure("failed to read CI public key", err)
	}
	publicKey := strings.TrimSpace(pub.Stdout)

	// Append to authorized_keys only when absent, so re-runs do not stack
	// duplicate entries.
	authorize := fmt.Sprintf(
		`touch "$HOME/.ssh/authorized_keys" && chmod 600 "$HOME/.ssh/authorized_keys" && { grep -qxF %s "$HOME/.ssh/authorized_keys" || printf '%%s\n' %s >> "$HOME/.ssh/authorized_keys"; }`,
		shellq.Quote(publicKey), shellq.Quote(publicKey))
	if _, err := run.RunCommand(authorize, "authorize CI key", timeoutQuick, false); err != nil {
		return failure("failed to authorize CI key", err)
	}

	priv, err := run.RunCommand(fmt.Sprintf(`cat "%s"`, keyPath), "read CI private key", timeoutQuick, false)
	if err != nil {
		return failure("failed to read CI private key", err)
	}

	repoKey, err := gh.GetActionsPublicKey(owner, repo)
	if err != nil {
		return failure("failed to fetch repository public key", err)
	}

	sealed, err := github.SealSecret(repoKey.Key, priv.Stdout)
	if err != nil {
		return failure("failed to seal private key", err)
	}

	if err := gh.PutActionsSecret(owner, repo, secretName, sealed, repoKey.KeyID); err != nil {
		return failure("failed to store Actions secret", err)
	}

	return succeed("CI key configured", map[string]interface{}{
		"keyName":        keyName,
		"secretName":     secretName,
		"publicKeyAdded": true,
		"repository":     in.SelectedRepo,
	})
}
