package steps

import (
	"fmt"
	"regexp"
	"strings"

	"go_provision/internal/model"
	"go_provision/internal/sshx"
)

// ServerStackInput carries the inputs for server stack installation
type ServerStackInput struct {
	PHPVersion string // e.g. "8.3"; empty selects the distro default
	Database   string // mysql | postgresql; empty selects mysql
}

var phpVersionPattern = regexp.MustCompile(`^[0-9]+\.[0-9]+$`)

// phpExtensions is the extension set installed alongside PHP
var phpExtensions = []string{
	"cli", "fpm", "mysql", "pgsql", "mbstring", "xml", "curl", "zip", "gd", "bcmath", "intl",
}

// DetectPackageManager looks for apt/dnf/yum on the remote host
func DetectPackageManager(run sshx.CommandRunner) (string, error) {
	detect := `command -v apt-get >/dev/null && echo apt || { command -v dnf >/dev/null && echo dnf || { command -v yum >/dev/null && echo yum || echo none; }; }`
	res, err := run.RunCommand(detect, "detect package manager", timeoutQuick, false)
	if err != nil {
		return "", err
	}
	pm := strings.TrimSpace(res.Stdout)
	if pm == "none" || pm == "" {
		return "", fmt.Errorf("no supported package manager found (apt/dnf/yum)")
	}
	return pm, nil
}

// stackPackages builds the install list for the requested PHP version and
// database engine, per package manager.
func stackPackages(pm, phpVersion, database string) []string {
	var pkgs []string
	switch pm {
	case "apt":
		prefix := "php"
		if phpVersion != "" {
			prefix = "php" + phpVersion
		}
		pkgs = append(pkgs, prefix)
		for _, ext := range phpExtensions {
			pkgs = append(pkgs, prefix+"-"+ext)
		}
		pkgs = append(pkgs, "nginx")
		if database == model.DBTypePostgreSQL {
			pkgs = append(pkgs, "postgresql", "postgresql-contrib")
		} else {
			pkgs = append(pkgs, "mysql-server")
		}
	default: // dnf / yum
		pkgs = append(pkgs, "php")
		for _, ext := range phpExtensions {
			if ext == "fpm" || ext == "cli" {
				pkgs = append(pkgs, "php-"+ext)
				continue
			}
			pkgs = append(pkgs, "php-"+ext)
		}
		pkgs = append(pkgs, "nginx")
		if database == model.DBTypePostgreSQL {
			pkgs = append(pkgs, "postgresql-server", "postgresql-contrib")
		} else {
			pkgs = append(pkgs, "mysql-server")
		}
	}
	return pkgs
}

// installCommand builds the non-interactive install command per manager
func installCommand(pm string, pkgs []string) string {
	list := strings.Join(pkgs, " ")
	switch pm {
	case "apt":
		return fmt.Sprintf("sudo DEBIAN_FRONTEND=noninteractive apt-get install -y %s", list)
	case "dnf":
		return fmt.Sprintf("sudo dnf install -y %s", list)
	default:
		return fmt.Sprintf("sudo yum install -y %s", list)
	}
}

// SetupServerStack installs the PHP/Nginx/database stack plus Composer and
// enables the services. Package installs are naturally idempotent: already
// installed packages are no-ops.
func SetupServerStack(run sshx.CommandRunner, in ServerStackInput) *Result {
	if in.PHPVersion != "" && !phpVersionPattern.MatchString(in.PHPVersion) {
		return failure("invalid PHP version", fmt.Errorf("phpVersion must look like 8.3, got %q", in.PHPVersion))
	}
	database := strings.ToLower(in.Database)
	if database == "" {
		database = model.DBTypeMySQL
	}
	if database != model.DBTypeMySQL && database != model.DBTypePostgreSQL {
		return failure("invalid database engine", fmt.Errorf("database must be mysql or postgresql, got %q", in.Database))
	}

	if _, err := run.RunCommand("sudo -n true", "sudo check", timeoutSudoCheck, false); err != nil {
		return failure("passwordless sudo is not available for this user", err)
	}

	pm, err := DetectPackageManager(run)
	if err != nil {
		return failure("unsupported operating system", err)
	}

	if pm == "apt" {
		if _, err := run.RunCommand("sudo apt-get update -y", "refresh package index", timeoutDownload, false); err != nil {
			return failure("failed to refresh package index", err)
		}
	}

	pkgs := stackPackages(pm, in.PHPVersion, database)
	if _, err := run.RunCommand(installCommand(pm, pkgs), "install server stack", timeoutInstall, false); err != nil {
		return failure("server stack installation failed", err)
	}

	// Composer: official installer, skipped when already present.
	composer := `command -v composer >/dev/null || { curl -sS https://getcomposer.org/installer | php && sudo mv composer.phar /usr/local/bin/composer; }`
	if _, err := run.RunCommand(composer, "install composer", timeoutInstall, false); err != nil {
		return failure("composer installation failed", err)
	}

	dbService := "mysql"
	if database == model.DBTypePostgreSQL {
		dbService = "postgresql"
	}
	enable := fmt.Sprintf("sudo systemctl enable --now nginx %s", dbService)
	if _, err := run.RunCommand(enable, "enable services", timeoutService, false); err != nil {
		return failure("failed to enable services", err)
	}

	versions := map[string]string{}
	checks := map[string]string{
		"php":      "php -v | head -n1",
		"nginx":    "nginx -v 2>&1",
		"composer": "composer --version 2>/dev/null | head -n1",
	}
	for name, cmd := range checks {
		if res, err := run.RunCommand(cmd, "check "+name+" version", timeoutQuick, true); err == nil {
			versions[name] = excerpt(res.Stdout+res.Stderr, 120)
		}
	}

	return succeed("server stack installed", map[string]interface{}{
		"packageManager":      pm,
		"extensionsInstalled": phpExtensions,
		"versions":            versions,
	})
}
