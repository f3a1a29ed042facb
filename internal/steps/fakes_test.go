package steps

import (
	"fmt"
	"time"

	"go_provision/internal/github"
	"go_provision/internal/sshx"
)

type sshxResult = sshx.CommandResult

// fakeRunner scripts remote command execution. Results and errors are keyed
// by label; unscripted labels succeed with empty output.
type fakeRunner struct {
	commands []string
	labels   []string
	results  map[string]*sshx.CommandResult
	errs     map[string]error
	closed   bool
}

func (f *fakeRunner) RunCommand(command, label string, timeout time.Duration, allowNonZeroExit bool) (*sshx.CommandResult, error) {
	f.commands = append(f.commands, command)
	f.labels = append(f.labels, label)
	if err, ok := f.errs[label]; ok {
		return nil, err
	}
	if res, ok := f.results[label]; ok {
		return res, nil
	}
	return &sshx.CommandResult{ExitCode: 0}, nil
}

func (f *fakeRunner) Close() error {
	f.closed = true
	return nil
}

// fakeGitHub scripts the GitHub API surface the steps consume
type fakeGitHub struct {
	user     *github.User
	userErr  error
	repos    map[string]*github.Repo
	branches map[string]*github.Branch
	files    map[string]string // "branch path" -> content
	pulls    []string

	createdBranches map[string]string // name -> sha
	putFiles        map[string]string // "branch path" -> content
	deployKeys      []string
	secrets         map[string]string
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		repos:           map[string]*github.Repo{},
		branches:        map[string]*github.Branch{},
		files:           map[string]string{},
		createdBranches: map[string]string{},
		putFiles:        map[string]string{},
		secrets:         map[string]string{},
	}
}

func (f *fakeGitHub) GetUser() (*github.User, error) {
	return f.user, f.userErr
}

func (f *fakeGitHub) GetRepo(owner, repo string) (*github.Repo, error) {
	r, ok := f.repos[owner+"/"+repo]
	if !ok {
		return nil, &github.APIError{StatusCode: 404, Body: "not found"}
	}
	return r, nil
}

func (f *fakeGitHub) CreateDeployKey(owner, repo, title, publicKey string, readOnly bool) (*github.DeployKey, error) {
	f.deployKeys = append(f.deployKeys, publicKey)
	return &github.DeployKey{ID: int64(len(f.deployKeys)), Title: title}, nil
}

func (f *fakeGitHub) GetActionsPublicKey(owner, repo string) (*github.ActionsPublicKey, error) {
	return &github.ActionsPublicKey{KeyID: "key-1", Key: "Tqp0U1DSHYieqE06hoSXoNOaUxmvHHcQGeBbGjmvSnA="}, nil
}

func (f *fakeGitHub) PutActionsSecret(owner, repo, name, encryptedValue, keyID string) error {
	f.secrets[name] = encryptedValue
	return nil
}

func (f *fakeGitHub) GetFileContent(owner, repo, path, ref string) (string, string, error) {
	content, ok := f.files[ref+" "+path]
	if !ok {
		return "", "", &github.APIError{StatusCode: 404, Body: "not found"}
	}
	return content, "sha-" + path, nil
}

func (f *fakeGitHub) GetRawFile(owner, repo, ref, path string) (string, error) {
	content, ok := f.files[ref+" "+path]
	if !ok {
		return "", &github.APIError{StatusCode: 404, Body: "not found"}
	}
	return content, nil
}

func (f *fakeGitHub) GetBranch(owner, repo, branch string) (*github.Branch, error) {
	b, ok := f.branches[branch]
	if !ok {
		return nil, &github.APIError{StatusCode: 404, Body: "branch not found"}
	}
	return b, nil
}

func (f *fakeGitHub) CreateBranch(owner, repo, name, sha string) error {
	f.createdBranches[name] = sha
	f.branches[name] = &github.Branch{Name: name}
	f.branches[name].Commit.SHA = sha
	return nil
}

func (f *fakeGitHub) PutFile(owner, repo, path, message, content, branch, sha string) error {
	f.putFiles[branch+" "+path] = content
	f.files[branch+" "+path] = content
	return nil
}

func branchWithSHA(name, sha string) *github.Branch {
	b := &github.Branch{Name: name}
	b.Commit.SHA = sha
	return b
}

func repoWithDefault(defaultBranch string) *github.Repo {
	return &github.Repo{DefaultBranch: defaultBranch}
}

func (f *fakeGitHub) CreatePull(owner, repo, title, head, base, body string) (*github.Pull, error) {
	f.pulls = append(f.pulls, head+"->"+base)
	return &github.Pull{
		Number:  len(f.pulls),
		HTMLURL: fmt.Sprintf("https://github.com/%s/%s/pull/%d", owner, repo, len(f.pulls)),
	}, nil
}
