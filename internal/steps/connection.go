package steps

import (
	"fmt"
	"time"
)

// VerifyInput carries everything needed to verify connectivity to a new or
// existing provisioning target.
type VerifyInput struct {
	Host            string
	Port            int
	Username        string
	PrivateKey      string
	GithubToken     string
	ApplicationName string
	ReadyTimeout    time.Duration
}

// ConnectionStatus reports one side of the verification
type ConnectionStatus struct {
	Connected bool   `json:"connected"`
	Username  string `json:"username,omitempty"`
	Error     string `json:"error,omitempty"`
}

// VerifyConnection checks SSH reachability with the supplied key and, when a
// GitHub token is given, validates it against the API. Pure read/check;
// naturally idempotent.
func VerifyConnection(dial Dialer, newGitHub func(string) GitHubClient, in VerifyInput) *Result {
	ssh := ConnectionStatus{}
	var githubStatus *ConnectionStatus

	sess, err := dial(in.Host, in.Port, in.Username, in.PrivateKey, in.ReadyTimeout)
	if err != nil {
		ssh.Error = err.Error()
	} else {
		// A trivial command proves the session is actually usable, not
		// just authenticated.
		if _, err := sess.RunCommand("echo connected", "connectivity check", timeoutQuick, false); err != nil {
			ssh.Error = err.Error()
		} else {
			ssh.Connected = true
		}
		sess.Close()
	}

	if in.GithubToken != "" {
		githubStatus = &ConnectionStatus{}
		user, err := newGitHub(in.GithubToken).GetUser()
		if err != nil {
			githubStatus.Error = err.Error()
		} else {
			githubStatus.Connected = true
			githubStatus.Username = user.Login
		}
	}

	data := map[string]interface{}{
		"connections": map[string]interface{}{
			"ssh":    ssh,
			"github": githubStatus,
		},
	}

	if !ssh.Connected {
		res := failure("SSH connection failed", fmt.Errorf("%s", ssh.Error))
		res.Data = data
		return res
	}
	if githubStatus != nil && !githubStatus.Connected {
		res := failure("GitHub token verification failed", fmt.Errorf("%s", githubStatus.Error))
		res.Data = data
		return res
	}

	return succeed("connection verified", data)
}
