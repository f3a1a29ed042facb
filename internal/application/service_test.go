package application

import (
	"testing"

	"go_provision/internal/model"
)

func TestMergeUpdatesOnlyNonZeroFields(t *testing.T) {
	incoming := &model.Application{
		Port:         2222,
		SelectedRepo: "acme/shop",
	}

	updates := mergeUpdates(incoming)

	if updates["port"] != 2222 {
		t.Errorf("port = %v", updates["port"])
	}
	if updates["selected_repo"] != "acme/shop" {
		t.Errorf("selected_repo = %v", updates["selected_repo"])
	}
	for _, key := range []string{"ssh_private_key", "github_token", "domain", "pathname", "status", "completed_at"} {
		if _, ok := updates[key]; ok {
			t.Errorf("zero-valued field %q must not be merged", key)
		}
	}
}

func TestMergeUpdatesEmptyIncoming(t *testing.T) {
	if updates := mergeUpdates(&model.Application{}); len(updates) != 0 {
		t.Errorf("expected no updates, got %v", updates)
	}
}

func TestMergeUpdatesCredentials(t *testing.T) {
	incoming := &model.Application{
		SSHPrivateKey: "key",
		GithubToken:   "token",
	}
	updates := mergeUpdates(incoming)
	if updates["ssh_private_key"] != "key" || updates["github_token"] != "token" {
		t.Errorf("credentials not merged: %v", updates)
	}
}
