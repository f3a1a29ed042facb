package steps

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestUpsertWorkflowHostInsertsAndConverges(t *testing.T) {
	entry := WorkflowHost{Application: "shop", Host: "1.2.3.4", Username: "deploy", Path: "/var/www/shop", Branch: "main"}

	once, err := UpsertWorkflowHost("", entry)
	if err != nil {
		t.Fatal(err)
	}

	entry.Host = "5.6.7.8"
	twice, err := UpsertWorkflowHost(once, entry)
	if err != nil {
		t.Fatal(err)
	}

	var doc struct {
		Hosts []WorkflowHost `yaml:"hosts"`
	}
	if err := yaml.Unmarshal([]byte(twice), &doc); err != nil {
		t.Fatal(err)
	}
	if len(doc.Hosts) != 1 {
		t.Fatalf("expected one host entry after re-upsert, got %d", len(doc.Hosts))
	}
	if doc.Hosts[0].Host != "5.6.7.8" {
		t.Errorf("entry was not replaced: %+v", doc.Hosts[0])
	}
}

func TestUpsertWorkflowHostKeepsOtherEntriesAndKeys(t *testing.T) {
	content := "version: 2\nhosts:\n  - application: blog\n    host: 9.9.9.9\n    username: deploy\n    path: /var/www/blog\n"
	out, err := UpsertWorkflowHost(content, WorkflowHost{Application: "shop", Host: "1.2.3.4", Username: "deploy", Path: "/var/www/shop"})
	if err != nil {
		t.Fatal(err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatal(err)
	}
	if doc["version"] != 2 {
		t.Errorf("unrelated top-level key lost: %v", doc["version"])
	}
	hosts, _ := doc["hosts"].([]interface{})
	if len(hosts) != 2 {
		t.Fatalf("expected two host entries, got %d", len(hosts))
	}
}

func TestUpsertWorkflowHostRejectsBadYAML(t *testing.T) {
	if _, err := UpsertWorkflowHost("hosts: [unclosed", WorkflowHost{Application: "a"}); err == nil {
		t.Error("expected parse error")
	}
}

func TestFeatureBranchName(t *testing.T) {
	now := time.Date(2026, 8, 25, 12, 0, 0, 0, time.UTC)
	a := FeatureBranchName("My App!", now)
	b := FeatureBranchName("My App!", now)

	if !strings.HasPrefix(a, "provision/my_app_-20260825-120000-") {
		t.Errorf("unexpected branch name %q", a)
	}
	if a == b {
		t.Error("branch names must be unique across runs")
	}
}

func TestUpdateDeployWorkflowHappyPath(t *testing.T) {
	gh := newFakeGitHub()
	gh.branches["main"] = branchWithSHA("main", "abc123")

	res := UpdateDeployWorkflow(gh, WorkflowInput{
		ApplicationName: "shop",
		SelectedRepo:    "acme/shop",
		Host:            "1.2.3.4",
		Username:        "deploy",
		SSHPath:         "/var/www/shop",
		BaseBranch:      "main",
	})
	if !res.Success {
		t.Fatalf("UpdateDeployWorkflow failed: %s (%v)", res.Message, res.Err)
	}

	feature, _ := res.Data["featureBranch"].(string)
	if !strings.HasPrefix(feature, "provision/shop-") {
		t.Errorf("featureBranch = %q", feature)
	}
	if gh.createdBranches[feature] != "abc123" {
		t.Errorf("feature branch not cut from base head: %v", gh.createdBranches)
	}
	config, ok := gh.putFiles[feature+" .github/deploy.yml"]
	if !ok {
		t.Fatalf("deploy config not committed: %v", gh.putFiles)
	}
	if !strings.Contains(config, "application: shop") {
		t.Errorf("host entry missing from config:\n%s", config)
	}
	workflow, ok := gh.putFiles[feature+" .github/workflows/provision-deploy.yml"]
	if !ok {
		t.Fatal("workflow file not committed")
	}
	if !strings.Contains(workflow, "PRIVATE_KEY_SHOP") {
		t.Errorf("workflow does not reference the Actions secret:\n%s", workflow)
	}
	if len(gh.pulls) != 1 {
		t.Fatalf("expected one pull request, got %d", len(gh.pulls))
	}
	if res.Data["prNumber"] != 1 {
		t.Errorf("prNumber = %v", res.Data["prNumber"])
	}
}

func TestUpdateDeployWorkflowMissingBaseBranch(t *testing.T) {
	gh := newFakeGitHub()

	res := UpdateDeployWorkflow(gh, WorkflowInput{
		ApplicationName: "shop",
		SelectedRepo:    "acme/shop",
		BaseBranch:      "staging",
	})
	if res.Success {
		t.Fatal("expected precondition failure when base branch is absent")
	}
	if !strings.Contains(res.Message, "does not exist") {
		t.Errorf("unexpected message: %q", res.Message)
	}
	if len(gh.createdBranches) != 0 {
		t.Error("no branch should be created without createBaseBranch")
	}
}

func TestUpdateDeployWorkflowCreatesBaseBranch(t *testing.T) {
	gh := newFakeGitHub()
	gh.repos["acme/shop"] = repoWithDefault("main")
	gh.branches["main"] = branchWithSHA("main", "def456")

	res := UpdateDeployWorkflow(gh, WorkflowInput{
		ApplicationName:  "shop",
		SelectedRepo:     "acme/shop",
		BaseBranch:       "staging",
		CreateBaseBranch: true,
	})
	if !res.Success {
		t.Fatalf("UpdateDeployWorkflow failed: %s (%v)", res.Message, res.Err)
	}
	if gh.createdBranches["staging"] != "def456" {
		t.Errorf("base branch not created from default head: %v", gh.createdBranches)
	}
}
