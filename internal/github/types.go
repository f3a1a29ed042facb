package github

import "fmt"

// APIError represents a non-2xx response from the GitHub API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api returned status %d: %s", e.StatusCode, e.Body)
}

// User represents the authenticated GitHub user
type User struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Repo represents a repository
type Repo struct {
	FullName      string `json:"full_name"`
	Name          string `json:"name"`
	Private       bool   `json:"private"`
	DefaultBranch string `json:"default_branch"`
	HTMLURL       string `json:"html_url"`
}

// DeployKey represents a repository deploy key
type DeployKey struct {
	ID       int64  `json:"id"`
	Title    string `json:"title"`
	Key      string `json:"key"`
	ReadOnly bool   `json:"read_only"`
}

// ActionsPublicKey is the repository public key used to seal Actions secrets
type ActionsPublicKey struct {
	KeyID string `json:"key_id"`
	Key   string `json:"key"`
}

// Branch represents a repository branch head
type Branch struct {
	Name   string `json:"name"`
	Commit struct {
		SHA string `json:"sha"`
	} `json:"commit"`
}

// FileContent is the contents-API representation of one file
type FileContent struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding"`
	SHA      string `json:"sha"`
	Path     string `json:"path"`
}

// Pull represents a pull request
type Pull struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
}
