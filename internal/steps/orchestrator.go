package steps

import (
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"go_provision/internal/application"
	"go_provision/internal/model"
	"go_provision/internal/sshx"
	"go_provision/internal/steplog"
)

// RemoteSession is an open SSH connection that can run commands and must be
// closed by whoever opened it.
type RemoteSession interface {
	sshx.CommandRunner
	Close() error
}

// Dialer opens a RemoteSession; injectable for tests
type Dialer func(host string, port int, username, privateKey string, readyTimeout time.Duration) (RemoteSession, error)

// DefaultDialer connects via sshx
func DefaultDialer(host string, port int, username, privateKey string, readyTimeout time.Duration) (RemoteSession, error) {
	return sshx.Connect(host, port, username, privateKey, readyTimeout)
}

// EventPublisher pushes step status changes to connected clients. Publish
// failures never affect step outcome.
type EventPublisher interface {
	PublishStepEvent(eventType string, payload interface{})
}

// ApplicationUpdater is the slice of the application service the orchestrator
// writes through. *application.Service implements it.
type ApplicationUpdater interface {
	UpdateFields(id int, updates map[string]interface{}) error
}

// Orchestrator binds application resolution, per-application locking, SSH
// session lifetime, step execution and step-log recording. It exclusively
// owns writes to application and step-log state.
type Orchestrator struct {
	Apps            ApplicationUpdater
	Log             steplog.Recorder
	Locks           *application.LockSet
	Events          EventPublisher
	Dial            Dialer
	NewGitHub       func(token string) GitHubClient
	SSHReadyTimeout time.Duration
	Logger          *logrus.Entry
}

// Execute runs one step for an application: acquires the application lock,
// opens a per-request SSH session when the step needs one, invokes the step,
// records exactly one step-log entry, and publishes a step event. The
// session is closed before returning.
func (o *Orchestrator) Execute(app *model.Application, stepName string, needSSH bool, fn func(run sshx.CommandRunner) *Result) *Result {
	release := o.Locks.Acquire(app.Host, app.Username, app.ApplicationName)
	defer release()

	o.publish("started", map[string]interface{}{
		"applicationId": app.ID,
		"step":          stepName,
	})

	var run sshx.CommandRunner
	if needSSH {
		if app.SSHPrivateKey == "" {
			res := failure("no SSH key found - run connection verify first", fmt.Errorf("application %d has no stored SSH key", app.ID))
			o.finish(app, stepName, res)
			return res
		}

		sess, err := o.Dial(app.Host, app.Port, app.Username, app.SSHPrivateKey, o.SSHReadyTimeout)
		if err != nil {
			res := failure("SSH connection failed", err)
			o.finish(app, stepName, res)
			return res
		}
		defer o.closeSession(sess)
		run = sess
	}

	start := time.Now()
	res := fn(run)
	if res.Data == nil {
		res.Data = map[string]interface{}{}
	}
	res.Data["durationMs"] = time.Since(start).Milliseconds()

	o.finish(app, stepName, res)
	return res
}

// finish records the step-log entry and publishes the outcome event. Logging
// failures are reported but do not change the step result.
func (o *Orchestrator) finish(app *model.Application, stepName string, res *Result) {
	status := model.StepStatusSuccess
	eventType := "success"
	if !res.Success {
		status = model.StepStatusFailed
		eventType = "failed"
	}

	payload := map[string]interface{}{
		"message": res.Message,
		"data":    res.Data,
	}
	if res.Err != nil {
		payload["error"] = res.Err.Error()
	}

	if err := o.Log.Record(app.ID, stepName, status, payload); err != nil {
		o.Logger.Errorf("failed to record step log for app=%d step=%s: %v", app.ID, stepName, err)
	}

	appStatus := model.ApplicationStatusInProgress
	if !res.Success {
		appStatus = model.ApplicationStatusFailed
	}
	if err := o.Apps.UpdateFields(app.ID, map[string]interface{}{"status": appStatus}); err != nil {
		o.Logger.Errorf("failed to update application status for app=%d: %v", app.ID, err)
	}

	o.publish(eventType, map[string]interface{}{
		"applicationId": app.ID,
		"step":          stepName,
		"message":       res.Message,
	})
}

func (o *Orchestrator) publish(eventType string, payload interface{}) {
	if o.Events != nil {
		o.Events.PublishStepEvent(eventType, payload)
	}
}

func (o *Orchestrator) closeSession(sess io.Closer) {
	if err := sess.Close(); err != nil {
		o.Logger.Warnf("failed to close SSH session: %v", err)
	}
}
