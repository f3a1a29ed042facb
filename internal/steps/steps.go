// Package steps implements the provisioning step family: independently
// re-runnable units of work against a remote host (over SSH) and the GitHub
// API. Every step validates its inputs, tolerates already-satisfied
// preconditions, and reports a structured result; the orchestrator wraps
// execution with per-application locking and step-log recording.
package steps

import (
	"time"

	"go_provision/internal/github"
)

// Per-command timeouts. Provisioning commands range from a 5 second sudo
// check to multi-minute package installs.
const (
	timeoutSudoCheck = 5 * time.Second
	timeoutQuick     = 15 * time.Second
	timeoutKeyGen    = 30 * time.Second
	timeoutGitTest   = 30 * time.Second
	timeoutDatabase  = 30 * time.Second
	timeoutService   = 60 * time.Second
	timeoutDownload  = 120 * time.Second
	timeoutInstall   = 6 * time.Minute
	timeoutCertbot   = 3 * time.Minute
)

// Result is the structured outcome of one step execution. Err is never
// propagated as a panic or escape; failures become {Success: false}.
type Result struct {
	Success bool
	Message string
	Data    map[string]interface{}
	Err     error
}

func succeed(message string, data map[string]interface{}) *Result {
	return &Result{Success: true, Message: message, Data: data}
}

func failure(message string, err error) *Result {
	return &Result{Success: false, Message: message, Err: err}
}

// GitHubClient is the slice of the GitHub API the steps consume.
// *github.Client implements it; tests substitute fakes.
type GitHubClient interface {
	GetUser() (*github.User, error)
	GetRepo(owner, repo string) (*github.Repo, error)
	CreateDeployKey(owner, repo, title, publicKey string, readOnly bool) (*github.DeployKey, error)
	GetActionsPublicKey(owner, repo string) (*github.ActionsPublicKey, error)
	PutActionsSecret(owner, repo, name, encryptedValue, keyID string) error
	GetFileContent(owner, repo, path, ref string) (string, string, error)
	GetRawFile(owner, repo, ref, path string) (string, error)
	GetBranch(owner, repo, branch string) (*github.Branch, error)
	CreateBranch(owner, repo, name, sha string) error
	PutFile(owner, repo, path, message, content, branch, sha string) error
	CreatePull(owner, repo, title, head, base, body string) (*github.Pull, error)
}
