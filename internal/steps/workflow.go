package steps

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"go_provision/internal/github"
)

// WorkflowInput carries the inputs for the deploy-workflow update
type WorkflowInput struct {
	ApplicationName  string
	SelectedRepo     string // owner/repo
	Host             string
	Username         string
	Port             int
	SSHPath          string
	BaseBranch       string
	CreateBaseBranch bool // create the base from the repo default branch when absent
}

// deployConfigPaths are the candidate locations of the deploy config file
var deployConfigPaths = []string{
	".github/deploy.yml",
	".github/workflows/deploy.yml",
	"deploy.yml",
	"config/deploy.yml",
}

// WorkflowHost is one entry of the deploy config's hosts list
type WorkflowHost struct {
	Application string `yaml:"application"`
	Host        string `yaml:"host"`
	Username    string `yaml:"username"`
	Port        int    `yaml:"port,omitempty"`
	Path        string `yaml:"path"`
	Branch      string `yaml:"branch,omitempty"`
}

// UpsertWorkflowHost parses the deploy config and upserts the hosts[] entry
// matching the application name, so repeated runs converge to one entry.
// Top-level keys other than hosts are preserved.
func UpsertWorkflowHost(content string, entry WorkflowHost) (string, error) {
	doc := map[string]interface{}{}
	if content != "" {
		if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
			return "", fmt.Errorf("failed to parse deploy config: %w", err)
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}
	}

	encoded, err := yaml.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("failed to encode host entry: %w", err)
	}
	entryMap := map[string]interface{}{}
	if err := yaml.Unmarshal(encoded, &entryMap); err != nil {
		return "", fmt.Errorf("failed to normalize host entry: %w", err)
	}

	hosts, _ := doc["hosts"].([]interface{})
	replaced := false
	for i, h := range hosts {
		hostMap, ok := h.(map[string]interface{})
		if !ok {
			continue
		}
		if name, _ := hostMap["application"].(string); name == entry.Application {
			hosts[i] = entryMap
			replaced = true
			break
		}
	}
	if !replaced {
		hosts = append(hosts, entryMap)
	}
	doc["hosts"] = hosts

	out, err := yaml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to encode deploy config: %w", err)
	}
	return string(out), nil
}

// FeatureBranchName derives a unique branch name; the timestamp and random
// suffix guarantee re-runs never collide.
func FeatureBranchName(applicationName string, now time.Time) string {
	return fmt.Sprintf("provision/%s-%s-%s",
		SanitizeName(applicationName),
		now.UTC().Format("20060102-150405"),
		uuid.NewString()[:8])
}

// WorkflowYAML renders the GitHub Actions deploy workflow for an application
func WorkflowYAML(applicationName, secretName, baseBranch string) string {
	return fmt.Sprintf(`name: Deploy %s

on:
  push:
    branches:
      - %s

jobs:
  deploy:
    runs-on: ubuntu-latest
    steps:
      - uses: actions/checkout@v4
      - name: Deploy over SSH
        uses: appleboy/ssh-action@v1
        with:
          key: ${{ secrets.%s }}
          script: ./deploy.sh %s
`, applicationName, baseBranch, secretName, SanitizeName(applicationName))
}

func isNotFound(err error) bool {
	var apiErr *github.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// UpdateDeployWorkflow resolves the base branch, cuts a unique feature
// branch from its head, upserts the application's hosts[] entry in the
// deploy config, writes the Actions workflow and opens a pull request.
func UpdateDeployWorkflow(gh GitHubClient, in WorkflowInput) *Result {
	owner, repo, err := SplitRepo(in.SelectedRepo)
	if err != nil {
		return failure("invalid repository", err)
	}
	if in.BaseBranch == "" {
		return failure("base branch is required", fmt.Errorf("baseBranch must not be empty"))
	}

	base, err := gh.GetBranch(owner, repo, in.BaseBranch)
	if err != nil {
		if !isNotFound(err) {
			return failure("failed to resolve base branch", err)
		}
		if !in.CreateBaseBranch {
			return failure(
				fmt.Sprintf("base branch %q does not exist - create it or set createBaseBranch", in.BaseBranch),
				err)
		}
		repoMeta, err := gh.GetRepo(owner, repo)
		if err != nil {
			return failure("failed to resolve repository default branch", err)
		}
		def, err := gh.GetBranch(owner, repo, repoMeta.DefaultBranch)
		if err != nil {
			return failure("failed to resolve default branch head", err)
		}
		if err := gh.CreateBranch(owner, repo, in.BaseBranch, def.Commit.SHA); err != nil {
			return failure("failed to create base branch", err)
		}
		base, err = gh.GetBranch(owner, repo, in.BaseBranch)
		if err != nil {
			return failure("failed to resolve created base branch", err)
		}
	}

	feature := FeatureBranchName(in.ApplicationName, time.Now())
	if err := gh.CreateBranch(owner, repo, feature, base.Commit.SHA); err != nil {
		return failure("failed to create feature branch", err)
	}

	// Locate the deploy config among the candidate paths; absence means we
	// create a fresh one at the first candidate.
	var (
		configPath    string
		configContent string
		configSHA     string
	)
	for _, path := range deployConfigPaths {
		content, sha, err := gh.GetFileContent(owner, repo, path, feature)
		if err == nil {
			configPath, configContent, configSHA = path, content, sha
			break
		}
		if !isNotFound(err) {
			return failure("failed to read deploy config", err)
		}
	}
	if configPath == "" {
		configPath = deployConfigPaths[0]
	}

	entry := WorkflowHost{
		Application: in.ApplicationName,
		Host:        in.Host,
		Username:    in.Username,
		Port:        in.Port,
		Path:        in.SSHPath,
		Branch:      in.BaseBranch,
	}
	updated, err := UpsertWorkflowHost(configContent, entry)
	if err != nil {
		return failure("failed to update deploy config", err)
	}

	message := fmt.Sprintf("Add deploy host for %s", in.ApplicationName)
	if err := gh.PutFile(owner, repo, configPath, message, updated, feature, configSHA); err != nil {
		return failure("failed to commit deploy config", err)
	}

	workflowPath := ".github/workflows/provision-deploy.yml"
	workflowContent := WorkflowYAML(in.ApplicationName, SecretName(in.ApplicationName), in.BaseBranch)
	_, workflowSHA, err := gh.GetFileContent(owner, repo, workflowPath, feature)
	if err != nil {
		if !isNotFound(err) {
			return failure("failed to read workflow file", err)
		}
		workflowSHA = ""
	}
	if err := gh.PutFile(owner, repo, workflowPath, "Update deploy workflow", workflowContent, feature, workflowSHA); err != nil {
		return failure("failed to commit workflow file", err)
	}

	pull, err := gh.CreatePull(owner, repo,
		fmt.Sprintf("Provision deploy config for %s", in.ApplicationName),
		feature, in.BaseBranch,
		fmt.Sprintf("Adds/updates the deploy host entry and workflow for `%s`.", in.ApplicationName))
	if err != nil {
		return failure("failed to open pull request", err)
	}

	return succeed("deploy workflow updated", map[string]interface{}{
		"featureBranch": feature,
		"prNumber":      pull.Number,
		"prUrl":         pull.HTMLURL,
	})
}
