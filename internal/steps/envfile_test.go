package steps

import (
	"strings"
	"testing"
)

func TestPatchEnvContentPatchesAndPreserves(t *testing.T) {
	content := "APP_NAME=Laravel\n# database settings\nDB_CONNECTION=sqlite\nDB_DATABASE=old\nA=1\n"
	updates := map[string]string{
		"DB_CONNECTION": "mysql",
		"DB_HOST":       "localhost",
		"DB_PORT":       "3306",
		"DB_DATABASE":   "myapp",
		"DB_USERNAME":   "myuser",
		"DB_PASSWORD":   "secret",
	}

	out := PatchEnvContent(content, updates)

	for _, want := range []string{
		"APP_NAME=Laravel",
		"# database settings",
		"A=1",
		"DB_CONNECTION=mysql",
		"DB_DATABASE=myapp",
		"DB_HOST=localhost",
		"DB_PORT=3306",
		"DB_USERNAME=myuser",
		"DB_PASSWORD=secret",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("patched content missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "DB_CONNECTION=sqlite") {
		t.Errorf("old DB_CONNECTION survived the patch:\n%s", out)
	}
	if strings.Count(out, "DB_DATABASE=") != 1 {
		t.Errorf("DB_DATABASE should appear exactly once:\n%s", out)
	}
}

func TestPatchEnvContentIdempotent(t *testing.T) {
	updates := map[string]string{
		"DB_CONNECTION": "pgsql",
		"DB_HOST":       "localhost",
		"DB_PORT":       "5432",
		"DB_DATABASE":   "db",
		"DB_USERNAME":   "u",
		"DB_PASSWORD":   "p",
	}
	once := PatchEnvContent("APP_ENV=production\n", updates)
	twice := PatchEnvContent(once, updates)
	if once != twice {
		t.Errorf("repatching changed output:\nfirst:\n%s\nsecond:\n%s", once, twice)
	}
}

func TestPatchEnvContentEmptyInput(t *testing.T) {
	out := PatchEnvContent("", map[string]string{"DB_HOST": "localhost"})
	if out != "DB_HOST=localhost\n" {
		t.Errorf("unexpected output for empty input: %q", out)
	}
}

func TestPatchEnvContentAppendsInStableOrder(t *testing.T) {
	updates := map[string]string{
		"DB_CONNECTION": "mysql",
		"DB_HOST":       "localhost",
		"DB_PORT":       "3306",
		"DB_DATABASE":   "db",
		"DB_USERNAME":   "u",
		"DB_PASSWORD":   "p",
	}
	out := PatchEnvContent("", updates)
	want := "DB_CONNECTION=mysql\nDB_HOST=localhost\nDB_PORT=3306\nDB_DATABASE=db\nDB_USERNAME=u\nDB_PASSWORD=p\n"
	if out != want {
		t.Errorf("appended keys out of order:\ngot:\n%s\nwant:\n%s", out, want)
	}
}

func TestBuildEnvUpdates(t *testing.T) {
	in := DatabaseInput{DBType: "postgresql", DBName: "shop", DBUsername: "shop_user", DBPassword: "pw"}
	updates := BuildEnvUpdates(in)

	if updates["DB_CONNECTION"] != "pgsql" {
		t.Errorf("DB_CONNECTION = %q, want pgsql", updates["DB_CONNECTION"])
	}
	if updates["DB_PORT"] != "5432" {
		t.Errorf("DB_PORT = %q, want 5432", updates["DB_PORT"])
	}
	if updates["DB_HOST"] != "localhost" {
		t.Errorf("DB_HOST = %q, want localhost", updates["DB_HOST"])
	}
}

func TestDBConnectionValue(t *testing.T) {
	if got := DBConnectionValue("mysql"); got != "mysql" {
		t.Errorf("mysql -> %q", got)
	}
	if got := DBConnectionValue("PostgreSQL"); got != "pgsql" {
		t.Errorf("PostgreSQL -> %q", got)
	}
}
