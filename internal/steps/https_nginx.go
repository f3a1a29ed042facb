package steps

import (
	"fmt"
	"strings"

	"go_provision/internal/shellq"
	"go_provision/internal/sshx"
)

// HTTPSNginxInput carries the inputs for HTTPS + nginx setup
type HTTPSNginxInput struct {
	ApplicationName string
	Domain          string
	Email           string
	Pathname        string // web root; certbot webroot challenges are served from here
}

// RenderNginxConfig builds the site config. While no certificate exists the
// SSL directives are emitted commented out, so nginx can start and serve the
// ACME challenge; once certbot has issued, the config is re-rendered with
// them enabled.
func RenderNginxConfig(domain, webroot string, sslEnabled bool) string {
	ssl := "    # SSL directives enabled after certificate issuance\n"
	directives := []string{
		"listen 443 ssl;",
		fmt.Sprintf("ssl_certificate /etc/letsencrypt/live/%s/fullchain.pem;", domain),
		fmt.Sprintf("ssl_certificate_key /etc/letsencrypt/live/%s/privkey.pem;", domain),
		"ssl_dhparam /etc/nginx/dhparam.pem;",
		"ssl_protocols TLSv1.2 TLSv1.3;",
	}

	var sb strings.Builder
	if sslEnabled {
		ssl = ""
		for _, d := range directives {
			ssl += "    " + d + "\n"
		}
	} else {
		for _, d := range directives {
			ssl += "    # " + d + "\n"
		}
	}

	sb.WriteString("server {\n")
	sb.WriteString("    listen 80;\n")
	sb.WriteString(fmt.Sprintf("    server_name %s;\n", domain))
	sb.WriteString(ssl)
	sb.WriteString(fmt.Sprintf("    root %s/current/public;\n", strings.TrimRight(webroot, "/")))
	sb.WriteString("    index index.php index.html;\n")
	sb.WriteString("\n")
	sb.WriteString("    location /.well-known/acme-challenge/ {\n")
	sb.WriteString(fmt.Sprintf("        root %s/shared/acme;\n", strings.TrimRight(webroot, "/")))
	sb.WriteString("    }\n")
	sb.WriteString("\n")
	sb.WriteString("    location / {\n")
	sb.WriteString("        try_files $uri $uri/ /index.php?$query_string;\n")
	sb.WriteString("    }\n")
	sb.WriteString("\n")
	sb.WriteString("    location ~ \\.php$ {\n")
	sb.WriteString("        include snippets/fastcgi-php.conf;\n")
	sb.WriteString("        fastcgi_pass unix:/run/php/php-fpm.sock;\n")
	sb.WriteString("    }\n")
	sb.WriteString("}\n")
	return sb.String()
}

// SetupHTTPSNginx installs nginx and certbot, renders the site config,
// obtains a certificate and enables automatic renewal. Config rendering
// always overwrites the target file; certbot skips issuance when the
// existing certificate is still valid.
func SetupHTTPSNginx(run sshx.CommandRunner, in HTTPSNginxInput) *Result {
	if err := shellq.ValidateDomain("domain", in.Domain); err != nil {
		return failure("invalid domain", err)
	}
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return failure("invalid email", fmt.Errorf("email %q is not valid", in.Email))
	}
	if err := shellq.ValidatePath("pathname", in.Pathname); err != nil {
		return failure("invalid pathname", err)
	}

	if _, err := run.RunCommand("sudo -n true", "sudo check", timeoutSudoCheck, false); err != nil {
		return failure("passwordless sudo is not available for this user", err)
	}

	pm, err := DetectPackageManager(run)
	if err != nil {
		return failure("unsupported operating system", err)
	}

	var install string
	switch pm {
	case "apt":
		install = "sudo DEBIAN_FRONTEND=noninteractive apt-get install -y nginx certbot"
	case "dnf":
		install = "sudo dnf install -y nginx certbot"
	default:
		install = "sudo yum install -y nginx certbot"
	}
	if _, err := run.RunCommand(install, "install nginx and certbot", timeoutInstall, false); err != nil {
		return failure("failed to install nginx/certbot", err)
	}

	configFile := fmt.Sprintf("/etc/nginx/conf.d/%s.conf", in.Domain)
	webroot := strings.TrimRight(in.Pathname, "/")

	// Back up whatever config is currently live before overwriting it.
	backup := fmt.Sprintf("test -f %s && sudo cp %s %s.bak || true",
		shellq.Quote(configFile), shellq.Quote(configFile), shellq.Quote(configFile))
	if _, err := run.RunCommand(backup, "back up nginx config", timeoutQuick, false); err != nil {
		return failure("failed to back up nginx config", err)
	}

	// Phase 1: SSL disabled so nginx can serve the challenge.
	prep := fmt.Sprintf("sudo mkdir -p %s/shared/acme", shellq.Quote(webroot))
	if _, err := run.RunCommand(prep, "create acme webroot", timeoutQuick, false); err != nil {
		return failure("failed to create acme webroot", err)
	}
	if _, err := run.RunCommand(sudoHeredocWrite(configFile, RenderNginxConfig(in.Domain, webroot, false)), "write nginx config (pre-cert)", timeoutQuick, false); err != nil {
		return failure("failed to write nginx config", err)
	}
	if _, err := run.RunCommand("sudo nginx -t && sudo systemctl reload nginx", "reload nginx", timeoutService, false); err != nil {
		return failure("nginx config validation failed", err)
	}

	// DH params are expensive to generate; keep an existing file.
	dhparam := "test -f /etc/nginx/dhparam.pem || sudo openssl dhparam -out /etc/nginx/dhparam.pem 2048"
	if _, err := run.RunCommand(dhparam, "generate dh params", timeoutInstall, false); err != nil {
		return failure("failed to generate dh params", err)
	}

	certbot := fmt.Sprintf(
		"sudo certbot certonly --webroot -w %s/shared/acme -d %s --email %s --agree-tos --non-interactive --keep-until-expiring",
		shellq.Quote(webroot), shellq.Quote(in.Domain), shellq.Quote(in.Email))
	if _, err := run.RunCommand(certbot, "obtain certificate", timeoutCertbot, false); err != nil {
		return failure("certificate issuance failed", err)
	}

	// Phase 2: re-render with SSL enabled now that the certificate exists.
	if _, err := run.RunCommand(sudoHeredocWrite(configFile, RenderNginxConfig(in.Domain, webroot, true)), "write nginx config (post-cert)", timeoutQuick, false); err != nil {
		return failure("failed to write nginx config", err)
	}
	if _, err := run.RunCommand("sudo nginx -t && sudo systemctl reload nginx", "reload nginx with ssl", timeoutService, false); err != nil {
		return failure("nginx reload with ssl failed", err)
	}

	// Renewal hook reloads nginx after each renewal.
	hook := "#!/bin/sh\nsystemctl reload nginx\n"
	hookCmd := sudoHeredocWrite("/etc/letsencrypt/renewal-hooks/deploy/reload-nginx.sh", hook) +
		" && sudo chmod 755 /etc/letsencrypt/renewal-hooks/deploy/reload-nginx.sh"
	if _, err := run.RunCommand("sudo mkdir -p /etc/letsencrypt/renewal-hooks/deploy && "+hookCmd, "configure renewal hook", timeoutQuick, false); err != nil {
		return failure("failed to configure renewal hook", err)
	}

	return succeed("https configured", map[string]interface{}{
		"domain":             in.Domain,
		"configFile":         configFile,
		"autoRenewalEnabled": true,
	})
}
