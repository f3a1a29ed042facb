package steps

import (
	"fmt"
	"strings"

	"go_provision/internal/shellq"
)

// SplitRepo parses an "owner/repo" selector
func SplitRepo(selectedRepo string) (owner, repo string, err error) {
	parts := strings.SplitN(selectedRepo, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("repository must be in owner/repo form, got %q", selectedRepo)
	}
	return parts[0], parts[1], nil
}

// SanitizeName lowercases an application name and replaces every
// non-alphanumeric rune with an underscore; used for key file names and
// host aliases.
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

// heredocWrite builds a command that overwrites path with content via a
// quoted heredoc, so the remote shell performs no expansion on the body.
func heredocWrite(path, content string) string {
	return heredocWriteExpr(shellq.Quote(path), content)
}

// heredocWriteExpr is heredocWrite with a caller-built path expression,
// for destinations that need shell expansion such as "$HOME/.ssh/config".
func heredocWriteExpr(pathExpr, content string) string {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return fmt.Sprintf("cat > %s <<'__PROV_EOF__'\n%s__PROV_EOF__", pathExpr, content)
}

// sudoHeredocWrite is heredocWrite for root-owned destinations
func sudoHeredocWrite(path, content string) string {
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return fmt.Sprintf("sudo tee %s > /dev/null <<'__PROV_EOF__'\n%s__PROV_EOF__", shellq.Quote(path), content)
}

// excerpt bounds command output captured into diagnostics
func excerpt(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
