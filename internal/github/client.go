// Package github is a minimal REST client for the GitHub operations the
// provisioning steps need: token verification, repo listing, deploy keys,
// file contents, branches/commits, Actions secrets and pull requests.
package github

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is an authenticated GitHub API client. Base URLs are injectable so
// tests can point the client at a local server.
type Client struct {
	httpClient *http.Client
	token      string
	apiBase    string
	rawBase    string
}

// NewClient creates a GitHub client for the given token
func NewClient(token, apiBase, rawBase string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		token:      token,
		apiBase:    strings.TrimRight(apiBase, "/"),
		rawBase:    strings.TrimRight(rawBase, "/"),
	}
}

// do performs one API request. A non-2xx status yields an *APIError with the
// response body preserved for diagnostics.
func (c *Client) do(method, path string, body interface{}, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequest(method, c.apiBase+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// GetUser returns the authenticated user; used to verify the token
func (c *Client) GetUser() (*User, error) {
	var user User
	if err := c.do("GET", "/user", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListRepos lists repositories accessible to the token, most recently
// updated first.
func (c *Client) ListRepos(page, perPage int) ([]Repo, error) {
	var repos []Repo
	path := fmt.Sprintf("/user/repos?sort=updated&per_page=%d&page=%d", perPage, page)
	if err := c.do("GET", path, nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// GetRepo returns repository metadata, including the default branch
func (c *Client) GetRepo(owner, repo string) (*Repo, error) {
	var r Repo
	if err := c.do("GET", fmt.Sprintf("/repos/%s/%s", owner, repo), nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateDeployKey registers a deploy key on the repository. Re-registering
// the same public key is treated as success so re-running the deploy-key
// step is idempotent.
func (c *Client) CreateDeployKey(owner, repo, title, publicKey string, readOnly bool) (*DeployKey, error) {
	body := map[string]interface{}{
		"title":     title,
		"key":       publicKey,
		"read_only": readOnly,
	}

	var key DeployKey
	err := c.do("POST", fmt.Sprintf("/repos/%s/%s/keys", owner, repo), body, &key)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnprocessableEntity &&
			strings.Contains(apiErr.Body, "already in use") {
			return &DeployKey{Title: title, Key: publicKey, ReadOnly: readOnly}, nil
		}
		return nil, err
	}
	return &key, nil
}

// GetActionsPublicKey fetches the repository public key for sealing secrets
func (c *Client) GetActionsPublicKey(owner, repo string) (*ActionsPublicKey, error) {
	var key ActionsPublicKey
	if err := c.do("GET", fmt.Sprintf("/repos/%s/%s/actions/secrets/public-key", owner, repo), nil, &key); err != nil {
		return nil, err
	}
	return &key, nil
}

// PutActionsSecret creates or updates a repository Actions secret. The value
// must already be sealed against the repository public key.
func (c *Client) PutActionsSecret(owner, repo, name, encryptedValue, keyID string) error {
	body := map[string]string{
		"encrypted_value": encryptedValue,
		"key_id":          keyID,
	}
	return c.do("PUT", fmt.Sprintf("/repos/%s/%s/actions/secrets/%s", owner, repo, url.PathEscape(name)), body, nil)
}

// GetFileContent fetches one file via the contents API and decodes it.
// Returns the decoded content and the blob SHA (needed to update the file).
func (c *Client) GetFileContent(owner, repo, path, ref string) (string, string, error) {
	var fc FileContent
	apiPath := fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapePath(path))
	if ref != "" {
		apiPath += "?ref=" + url.QueryEscape(ref)
	}
	if err := c.do("GET", apiPath, nil, &fc); err != nil {
		return "", "", err
	}

	if fc.Encoding == "base64" {
		decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(fc.Content, "\n", ""))
		if err != nil {
			return "", "", fmt.Errorf("failed to decode content of %s: %w", path, err)
		}
		return string(decoded), fc.SHA, nil
	}
	return fc.Content, fc.SHA, nil
}

// GetRawFile fetches one file from the raw content host. Fallback for repos
// where the contents API is unavailable to the token.
func (c *Client) GetRawFile(owner, repo, ref, path string) (string, error) {
	rawURL := fmt.Sprintf("%s/%s/%s/%s/%s", c.rawBase, owner, repo, url.PathEscape(ref), escapePath(path))
	req, err := http.NewRequest("GET", rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("raw fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return string(body), nil
}

// GetBranch returns the head of a branch
func (c *Client) GetBranch(owner, repo, branch string) (*Branch, error) {
	var b Branch
	if err := c.do("GET", fmt.Sprintf("/repos/%s/%s/branches/%s", owner, repo, url.PathEscape(branch)), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBranch creates refs/heads/<name> pointing at the given commit
func (c *Client) CreateBranch(owner, repo, name, sha string) error {
	body := map[string]string{
		"ref": "refs/heads/" + name,
		"sha": sha,
	}
	return c.do("POST", fmt.Sprintf("/repos/%s/%s/git/refs", owner, repo), body, nil)
}

// PutFile creates or updates one file on a branch. sha must be the current
// blob SHA when updating an existing file, empty when creating.
func (c *Client) PutFile(owner, repo, path, message, content, branch, sha string) error {
	body := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  branch,
	}
	if sha != "" {
		body["sha"] = sha
	}
	return c.do("PUT", fmt.Sprintf("/repos/%s/%s/contents/%s", owner, repo, escapePath(path)), body, nil)
}

// CreatePull opens a pull request from head into base
func (c *Client) CreatePull(owner, repo, title, head, base, bodyText string) (*Pull, error) {
	body := map[string]string{
		"title": title,
		"head":  head,
		"base":  base,
		"body":  bodyText,
	}
	var pull Pull
	if err := c.do("POST", fmt.Sprintf("/repos/%s/%s/pulls", owner, repo), body, &pull); err != nil {
		return nil, err
	}
	return &pull, nil
}

// escapePath escapes each path segment while preserving separators
func escapePath(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
