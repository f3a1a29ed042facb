package steps

import (
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"go_provision/internal/application"
	"go_provision/internal/model"
	"go_provision/internal/sshx"
)

type recordedEntry struct {
	applicationID int
	step          string
	status        model.StepStatus
	message       interface{}
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []recordedEntry
}

func (f *fakeRecorder) Record(applicationID int, step string, status model.StepStatus, message interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, recordedEntry{applicationID, step, status, message})
	return nil
}

type fakeUpdater struct {
	mu      sync.Mutex
	updates []map[string]interface{}
}

func (f *fakeUpdater) UpdateFields(id int, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updates)
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []string
}

func (f *fakePublisher) PublishStepEvent(eventType string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
}

func newTestOrchestrator(dial Dialer) (*Orchestrator, *fakeRecorder, *fakeUpdater, *fakePublisher) {
	rec := &fakeRecorder{}
	upd := &fakeUpdater{}
	pub := &fakePublisher{}
	o := &Orchestrator{
		Apps:            upd,
		Log:             rec,
		Locks:           application.NewLockSet(),
		Events:          pub,
		Dial:            dial,
		SSHReadyTimeout: time.Second,
		Logger:          logrus.NewEntry(logrus.New()),
	}
	return o, rec, upd, pub
}

func testApp() *model.Application {
	return &model.Application{
		BaseModel:       model.BaseModel{ID: 7},
		Host:            "1.2.3.4",
		Port:            22,
		Username:        "deploy",
		ApplicationName: "shop",
		SSHPrivateKey:   "key-material",
	}
}

func TestExecuteHappyPath(t *testing.T) {
	sess := &fakeRunner{}
	o, rec, upd, pub := newTestOrchestrator(func(host string, port int, username, privateKey string, readyTimeout time.Duration) (RemoteSession, error) {
		return sess, nil
	})

	res := o.Execute(testApp(), model.StepFolderSetup, true, func(run sshx.CommandRunner) *Result {
		if run != sess {
			t.Error("step did not receive the dialed session")
		}
		return succeed("done", map[string]interface{}{"x": 1})
	})

	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Message)
	}
	if _, ok := res.Data["durationMs"]; !ok {
		t.Error("durationMs missing from result data")
	}
	if !sess.closed {
		t.Error("session was not closed")
	}

	if len(rec.entries) != 1 {
		t.Fatalf("expected one step-log entry, got %d", len(rec.entries))
	}
	e := rec.entries[0]
	if e.applicationID != 7 || e.step != model.StepFolderSetup || e.status != model.StepStatusSuccess {
		t.Errorf("unexpected entry: %+v", e)
	}

	if len(pub.events) != 2 || pub.events[0] != "started" || pub.events[1] != "success" {
		t.Errorf("unexpected event sequence: %v", pub.events)
	}
	if len(upd.updates) != 1 || upd.updates[0]["status"] != model.ApplicationStatusInProgress {
		t.Errorf("unexpected application updates: %v", upd.updates)
	}
}

func TestExecuteWithoutStoredKey(t *testing.T) {
	dialed := false
	o, rec, upd, _ := newTestOrchestrator(func(host string, port int, username, privateKey string, readyTimeout time.Duration) (RemoteSession, error) {
		dialed = true
		return &fakeRunner{}, nil
	})

	app := testApp()
	app.SSHPrivateKey = ""
	res := o.Execute(app, model.StepDatabaseCreate, true, func(run sshx.CommandRunner) *Result {
		t.Error("step must not run without a stored key")
		return succeed("", nil)
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if !strings.Contains(res.Message, "no SSH key found") {
		t.Errorf("unexpected message: %q", res.Message)
	}
	if dialed {
		t.Error("dial must not happen without a stored key")
	}
	if len(rec.entries) != 1 || rec.entries[0].status != model.StepStatusFailed {
		t.Errorf("failure was not recorded: %+v", rec.entries)
	}
	if len(upd.updates) != 1 || upd.updates[0]["status"] != model.ApplicationStatusFailed {
		t.Errorf("application status not failed: %v", upd.updates)
	}
}

func TestExecuteDialFailure(t *testing.T) {
	o, rec, _, pub := newTestOrchestrator(func(host string, port int, username, privateKey string, readyTimeout time.Duration) (RemoteSession, error) {
		return nil, &sshx.ConnectionError{Host: host, Err: fmt.Errorf("refused")}
	})

	res := o.Execute(testApp(), model.StepServerStackSetup, true, func(run sshx.CommandRunner) *Result {
		t.Error("step must not run when dialing fails")
		return succeed("", nil)
	})

	if res.Success {
		t.Fatal("expected failure")
	}
	if len(rec.entries) != 1 || rec.entries[0].status != model.StepStatusFailed {
		t.Errorf("failure was not recorded: %+v", rec.entries)
	}
	if len(pub.events) != 2 || pub.events[1] != "failed" {
		t.Errorf("unexpected event sequence: %v", pub.events)
	}
}

func TestExecuteTimeoutCleansUpSession(t *testing.T) {
	sess := &fakeRunner{errs: map[string]error{
		"install server stack": &sshx.TimeoutError{Label: "install server stack", Timeout: time.Minute},
	}}
	o, rec, _, _ := newTestOrchestrator(func(host string, port int, username, privateKey string, readyTimeout time.Duration) (RemoteSession, error) {
		return sess, nil
	})

	res := o.Execute(testApp(), model.StepServerStackSetup, true, func(run sshx.CommandRunner) *Result {
		if _, err := run.RunCommand("sudo apt-get install ...", "install server stack", time.Minute, false); err != nil {
			return failure("server stack installation failed", err)
		}
		return succeed("installed", nil)
	})

	if res.Success {
		t.Fatal("expected timeout failure")
	}
	if !sess.closed {
		t.Error("session must be closed after a timed-out step")
	}

	payload, ok := rec.entries[0].message.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected payload type %T", rec.entries[0].message)
	}
	errText, _ := payload["error"].(string)
	if !strings.Contains(errText, "install server stack") {
		t.Errorf("timeout error should carry the command label, got %q", errText)
	}
}

func TestExecuteStepsWithoutSSHSkipDial(t *testing.T) {
	o, _, _, _ := newTestOrchestrator(func(host string, port int, username, privateKey string, readyTimeout time.Duration) (RemoteSession, error) {
		t.Error("dial must not happen for GitHub-only steps")
		return nil, fmt.Errorf("unreachable")
	})

	res := o.Execute(testApp(), model.StepDeployWorkflowUpdate, false, func(run sshx.CommandRunner) *Result {
		if run != nil {
			t.Error("GitHub-only steps receive no runner")
		}
		return succeed("ok", nil)
	})
	if !res.Success {
		t.Fatalf("unexpected failure: %s", res.Message)
	}
}

func TestExecuteSerializesPerApplication(t *testing.T) {
	o, rec, _, _ := newTestOrchestrator(func(host string, port int, username, privateKey string, readyTimeout time.Duration) (RemoteSession, error) {
		return &fakeRunner{}, nil
	})

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Execute(testApp(), model.StepFolderSetup, true, func(run sshx.CommandRunner) *Result {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return succeed("ok", nil)
			})
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Errorf("steps for one application overlapped: max concurrency %d", maxRunning)
	}
	if len(rec.entries) != 8 {
		t.Errorf("expected 8 log entries, got %d", len(rec.entries))
	}
}
