package steps

import (
	"fmt"
	"strings"

	"go_provision/internal/shellq"
	"go_provision/internal/sshx"
)

// EnvSetupInput carries the inputs for env setup
type EnvSetupInput struct {
	Pathname     string
	SelectedRepo string // owner/repo
}

// fetchEnvExample tries the contents API and then the raw host, across the
// candidate branches and paths, returning the first hit.
func fetchEnvExample(gh GitHubClient, owner, repo string) (content, source string, err error) {
	var lastErr error
	for _, branch := range envExampleBranches {
		for _, path := range envExamplePaths {
			if content, _, err := gh.GetFileContent(owner, repo, path, branch); err == nil {
				return content, fmt.Sprintf("%s@%s (contents api)", path, branch), nil
			} else {
				lastErr = err
			}
			if content, err := gh.GetRawFile(owner, repo, branch, path); err == nil {
				return content, fmt.Sprintf("%s@%s (raw)", path, branch), nil
			} else {
				lastErr = err
			}
		}
	}
	return "", "", fmt.Errorf("no env example found in %s/%s: %w", owner, repo, lastErr)
}

// SetupEnv fetches the repository's example env file and writes it to
// <pathname>/shared/.env. The destination is overwritten unconditionally,
// so the latest fetch always wins.
func SetupEnv(run sshx.CommandRunner, gh GitHubClient, in EnvSetupInput) *Result {
	if err := shellq.ValidatePath("pathname", in.Pathname); err != nil {
		return failure("invalid pathname", err)
	}
	owner, repo, err := SplitRepo(in.SelectedRepo)
	if err != nil {
		return failure("invalid repository", err)
	}

	content, source, err := fetchEnvExample(gh, owner, repo)
	if err != nil {
		return failure("failed to fetch .env.example", err)
	}

	filePath := strings.TrimRight(in.Pathname, "/") + "/shared/.env"

	mkdir := fmt.Sprintf("mkdir -p %s", shellq.Quote(strings.TrimRight(in.Pathname, "/")+"/shared"))
	if _, err := run.RunCommand(mkdir, "create shared directory", timeoutQuick, false); err != nil {
		return failure("failed to create shared directory", err)
	}

	if _, err := run.RunCommand(heredocWrite(filePath, content), "write env file", timeoutQuick, false); err != nil {
		return failure("failed to write env file", err)
	}

	verify, err := run.RunCommand(fmt.Sprintf("wc -l < %s", shellq.Quote(filePath)), "verify env file", timeoutQuick, false)
	if err != nil {
		return failure("failed to verify env file", err)
	}

	return succeed("env file written", map[string]interface{}{
		"filePath": filePath,
		"source":   source,
		"verification": map[string]interface{}{
			"lines": strings.TrimSpace(verify.Stdout),
		},
	})
}
