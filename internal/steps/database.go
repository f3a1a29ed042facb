package steps

import (
	"fmt"
	"strings"

	"go_provision/internal/model"
	"go_provision/internal/shellq"
	"go_provision/internal/sshx"
)

// DatabaseInput carries the inputs for database creation
type DatabaseInput struct {
	DBType     string // mysql | postgresql
	DBName     string
	DBUsername string
	DBPassword string
	DBPort     int
}

// Validate applies the identifier allow-lists before anything reaches a
// shell. Passwords are never embedded unquoted, but identifiers end up
// inside SQL, so they get the strict check. Database creation needs a
// password; env patching accepts an empty one and writes the key bare.
func (in *DatabaseInput) Validate() error {
	if in.DBPassword == "" {
		return fmt.Errorf("dbPassword must not be empty")
	}
	return in.ValidateForEnv()
}

// ValidateForEnv is Validate without the non-empty password requirement
func (in *DatabaseInput) ValidateForEnv() error {
	dbType := strings.ToLower(in.DBType)
	if dbType != model.DBTypeMySQL && dbType != model.DBTypePostgreSQL {
		return fmt.Errorf("dbType must be mysql or postgresql, got %q", in.DBType)
	}
	if err := shellq.ValidateIdentifier("dbName", in.DBName); err != nil {
		return err
	}
	if err := shellq.ValidateIdentifier("dbUsername", in.DBUsername); err != nil {
		return err
	}
	if strings.ContainsAny(in.DBPassword, "'\\\x00") {
		return fmt.Errorf("dbPassword must not contain quotes or backslashes")
	}
	return nil
}

// DefaultPort returns the engine default when no port was supplied
func (in *DatabaseInput) DefaultPort() int {
	if in.DBPort != 0 {
		return in.DBPort
	}
	if strings.ToLower(in.DBType) == model.DBTypePostgreSQL {
		return 5432
	}
	return 3306
}

// mysqlStatements builds the idempotent create/grant sequence for MySQL
func mysqlStatements(in DatabaseInput) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", in.DBName),
		fmt.Sprintf("CREATE USER IF NOT EXISTS '%s'@'localhost' IDENTIFIED BY '%s'", in.DBUsername, in.DBPassword),
		fmt.Sprintf("GRANT ALL PRIVILEGES ON `%s`.* TO '%s'@'localhost'", in.DBName, in.DBUsername),
		"FLUSH PRIVILEGES",
	}
}

// postgresCommands builds the idempotent create/grant command sequence for
// PostgreSQL. CREATE DATABASE has no IF NOT EXISTS, so existence is checked
// explicitly first.
func postgresCommands(in DatabaseInput) []string {
	existsCheck := fmt.Sprintf(`sudo -u postgres psql -tAc %s | grep -q 1 || sudo -u postgres createdb %s`,
		shellq.Quote(fmt.Sprintf("SELECT 1 FROM pg_database WHERE datname = '%s'", in.DBName)), in.DBName)
	createRole := fmt.Sprintf(`sudo -u postgres psql -c %s`,
		shellq.Quote(fmt.Sprintf("DO $$ BEGIN IF NOT EXISTS (SELECT FROM pg_roles WHERE rolname = '%s') THEN CREATE ROLE %s LOGIN PASSWORD '%s'; END IF; END $$;", in.DBUsername, in.DBUsername, in.DBPassword)))
	grant := fmt.Sprintf(`sudo -u postgres psql -c %s`,
		shellq.Quote(fmt.Sprintf("GRANT ALL PRIVILEGES ON DATABASE %s TO %s;", in.DBName, in.DBUsername)))
	return []string{existsCheck, createRole, grant}
}

// CreateDatabase provisions a database and user on the remote host. All
// statements use IF-NOT-EXISTS semantics, so re-running converges instead of
// failing on "already exists".
func CreateDatabase(run sshx.CommandRunner, in DatabaseInput) *Result {
	if err := in.Validate(); err != nil {
		return failure("invalid database parameters", err)
	}

	dbType := strings.ToLower(in.DBType)

	var commands []string
	if dbType == model.DBTypeMySQL {
		sql := strings.Join(mysqlStatements(in), "; ") + ";"
		commands = append(commands, fmt.Sprintf("sudo mysql -e %s", shellq.Quote(sql)))
	} else {
		commands = postgresCommands(in)
	}

	for i, cmd := range commands {
		label := fmt.Sprintf("create database (%s %d/%d)", dbType, i+1, len(commands))
		if _, err := run.RunCommand(cmd, label, timeoutDatabase, false); err != nil {
			return failure("database creation failed", err)
		}
	}

	return succeed("database created", map[string]interface{}{
		"dbType":     dbType,
		"dbName":     in.DBName,
		"dbUsername": in.DBUsername,
	})
}
