package steps

import (
	"fmt"
	"regexp"
	"strings"

	"go_provision/internal/sshx"
)

// NodeNVMInput carries the inputs for Node/NVM setup
type NodeNVMInput struct {
	NodeVersion string // e.g. "20" or "20.11.1"; empty selects --lts
}

var nodeVersionPattern = regexp.MustCompile(`^[0-9]+(\.[0-9]+){0,2}$`)

const nvmInstallerURL = "https://raw.githubusercontent.com/nvm-sh/nvm/v0.39.7/install.sh"

// nvmPrefix sources nvm in a fresh non-interactive shell. Every RunCommand
// starts a clean shell, so each nvm invocation must source the profile
// itself.
const nvmPrefix = `export NVM_DIR="$HOME/.nvm" && [ -s "$NVM_DIR/nvm.sh" ] && . "$NVM_DIR/nvm.sh" && `

// SetupNodeNVM installs NVM (skipped when present) and the requested Node
// version, making it the default. All nvm subcommands are idempotent by the
// tool's own design. No sudo required; everything lives in the user's home.
func SetupNodeNVM(run sshx.CommandRunner, in NodeNVMInput) *Result {
	if in.NodeVersion != "" && !nodeVersionPattern.MatchString(in.NodeVersion) {
		return failure("invalid node version", fmt.Errorf("nodeVersion must look like 20 or 20.11.1, got %q", in.NodeVersion))
	}

	install := fmt.Sprintf(`test -s "$HOME/.nvm/nvm.sh" || curl -o- %s | bash`, nvmInstallerURL)
	if _, err := run.RunCommand(install, "install nvm", timeoutDownload, false); err != nil {
		return failure("nvm installation failed", err)
	}

	version := in.NodeVersion
	if version == "" {
		version = "--lts"
	}
	nodeSetup := nvmPrefix + fmt.Sprintf("nvm install %s && nvm use %s && nvm alias default %s", version, version, version)
	if _, err := run.RunCommand(nodeSetup, "install node", timeoutInstall, false); err != nil {
		return failure("node installation failed", err)
	}

	versions := map[string]string{}
	checks := map[string]string{
		"nvm":  nvmPrefix + "nvm --version",
		"node": nvmPrefix + "node --version",
		"npm":  nvmPrefix + "npm --version",
	}
	for name, cmd := range checks {
		res, err := run.RunCommand(cmd, "check "+name+" version", timeoutQuick, false)
		if err != nil {
			return failure("failed to verify "+name+" version", err)
		}
		versions[name] = strings.TrimSpace(res.Stdout)
	}

	return succeed("node installed", map[string]interface{}{
		"versions": versions,
	})
}
