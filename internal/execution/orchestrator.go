// Package execution runs rendered scripts through an external test
// runner and classifies the outcome.
package execution

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/testpilot/internal/scripts"
	"github.com/jonathan/testpilot/internal/storage"
	"github.com/jonathan/testpilot/internal/types"
)

// Defaults for the external runner.
const (
	DefaultRunner  = "pytest"
	DefaultTimeout = 5 * time.Minute
)

// Artifact filenames written under the run's artifact directory.
const (
	JUnitFilename  = "junit.xml"
	StdoutFilename = "stdout.txt"
	StderrFilename = "stderr.txt"
)

// Options configures an Orchestrator at construction time. Mock is an
// explicit strategy choice, not an environment read, so instances with
// different modes can coexist in one process.
type Options struct {
	Mock    bool
	Runner  string
	Timeout time.Duration
}

// Orchestrator executes a run's scripts and writes outcomes back onto
// the run record, committing state after each phase transition.
type Orchestrator struct {
	store   storage.Store
	mock    bool
	runner  string
	timeout time.Duration
}

// NewOrchestrator creates an orchestrator over the given store.
func NewOrchestrator(store storage.Store, opts Options) *Orchestrator {
	runner := opts.Runner
	if runner == "" {
		runner = DefaultRunner
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Orchestrator{store: store, mock: opts.Mock, runner: runner, timeout: timeout}
}

// Run drives a queued run to a terminal status. Environment problems
// (runner missing, timeout) land in the run's status and artifacts, not
// in the returned error; the error is reserved for storage failures.
func (o *Orchestrator) Run(ctx context.Context, run *types.TestRun, scriptsDir string) error {
	if o.mock {
		return o.runMock(ctx, run)
	}
	return o.runProcess(ctx, run, scriptsDir)
}

// runMock deterministically passes every pending result with a strictly
// increasing duration sequence, committing each phase so pollers observe
// queued, running, completed in order.
func (o *Orchestrator) runMock(ctx context.Context, run *types.TestRun) error {
	now := time.Now().UTC()
	run.Status = types.RunStatusRunning
	run.StartedAt = &now
	if err := o.store.SaveRun(ctx, run); err != nil {
		return err
	}

	for i := range run.Results {
		run.Results[i].Status = types.ResultStatusPassed
		run.Results[i].DurationSeconds = 0.1 * float64(i+1)
		run.Results[i].ErrorMessage = ""
	}
	finished := time.Now().UTC()
	run.Status = types.RunStatusCompleted
	run.FinishedAt = &finished
	run.Duration = finished.Sub(now).Seconds()
	run.Totals = types.Totals{Total: len(run.Results), Passed: len(run.Results)}
	return o.store.SaveRun(ctx, run)
}

// runProcess invokes the external runner against the script directory
// with a bounded wall-clock timeout. The timeout cancels the wait (and
// kills the process); it is not a graceful signal to the tests.
func (o *Orchestrator) runProcess(ctx context.Context, run *types.TestRun, scriptsDir string) error {
	artifactsDir, err := o.store.RunArtifactsDir(run.ID)
	if err != nil {
		return err
	}
	junitPath := filepath.Join(artifactsDir, JUnitFilename)

	started := time.Now().UTC()
	run.Status = types.RunStatusRunning
	run.StartedAt = &started
	if err := o.store.SaveRun(ctx, run); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, o.runner, scriptsDir, "-q", "--junitxml="+junitPath)

	var stdout, stderr bytes.Buffer
	status, returnCode, execErr := o.runCommand(runCtx, cmd, &stdout, &stderr)
	if execErr != nil {
		fmt.Fprintf(&stderr, "\n%v", execErr)
	}
	duration := time.Since(started).Seconds()

	// Partial output survives timeouts; persist whatever was captured.
	if err := os.WriteFile(filepath.Join(artifactsDir, StdoutFilename), stdout.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write stdout artifact: %w", err)
	}
	if err := os.WriteFile(filepath.Join(artifactsDir, StderrFilename), stderr.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write stderr artifact: %w", err)
	}

	run.Artifacts = append(run.Artifacts,
		types.Artifact{RunID: run.ID, Kind: types.ArtifactKindLog, Filename: StdoutFilename},
		types.Artifact{RunID: run.ID, Kind: types.ArtifactKindLog, Filename: StderrFilename},
	)

	junitContent, readErr := os.ReadFile(junitPath)
	if readErr == nil {
		run.Artifacts = append(run.Artifacts,
			types.Artifact{RunID: run.ID, Kind: types.ArtifactKindReport, Filename: JUnitFilename})
		run.Totals = CountTotals(junitContent)
		o.applyCaseResults(run, ParseCaseResults(junitContent), status)
	} else {
		run.Totals = types.Totals{}
		o.applyCaseResults(run, nil, status)
	}

	finished := time.Now().UTC()
	run.Status = status
	run.FinishedAt = &finished
	run.Duration = duration
	run.ReturnCode = returnCode
	return o.store.SaveRun(ctx, run)
}

// runCommand starts the runner, drains both output streams, and maps the
// three observable outcomes onto run statuses.
func (o *Orchestrator) runCommand(ctx context.Context, cmd *exec.Cmd, stdout, stderr io.Writer) (string, int, error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return types.RunStatusError, 1, err
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return types.RunStatusError, 1, err
	}

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return types.RunStatusError, 1, fmt.Errorf("%s not found in environment", o.runner)
		}
		return types.RunStatusError, 1, err
	}

	g := new(errgroup.Group)
	g.Go(func() error {
		_, err := io.Copy(stdout, stdoutPipe)
		return err
	})
	g.Go(func() error {
		_, err := io.Copy(stderr, stderrPipe)
		return err
	})
	copyErr := g.Wait()
	waitErr := cmd.Wait()

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.RunStatusTimeout, 1, fmt.Errorf("execution timed out")
	}
	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return types.RunStatusFailed, exitErr.ExitCode(), nil
		}
		return types.RunStatusError, 1, waitErr
	}
	if copyErr != nil {
		return types.RunStatusCompleted, 0, copyErr
	}
	return types.RunStatusCompleted, 0, nil
}

// applyCaseResults writes statuses back onto the run's results matched
// by test case identity (the function name the renderer derives), never
// positionally. Without per-case entries every result gets the uniform
// exit-code mapping.
func (o *Orchestrator) applyCaseResults(run *types.TestRun, caseResults []CaseResult, runStatus string) {
	byName := make(map[string]CaseResult, len(caseResults))
	for _, cr := range caseResults {
		byName[cr.Name] = cr
	}

	groupIndex := map[string]int{}
	for i := range run.Results {
		sid := scripts.SanitizeIdentifier(run.Results[i].RequirementID)
		groupIndex[sid]++
		functionName := fmt.Sprintf("test_%s_%d", sid, groupIndex[sid])

		if cr, ok := byName[functionName]; ok {
			run.Results[i].Status = cr.Status
			run.Results[i].DurationSeconds = cr.Duration
			if cr.Status == types.ResultStatusFailed {
				run.Results[i].ErrorMessage = "Test runner reported a failure"
			}
			continue
		}

		switch runStatus {
		case types.RunStatusCompleted:
			run.Results[i].Status = types.ResultStatusPassed
		case types.RunStatusFailed:
			run.Results[i].Status = types.ResultStatusFailed
			run.Results[i].ErrorMessage = "Test runner reported failures"
		default:
			run.Results[i].Status = types.ResultStatusSkipped
			run.Results[i].ErrorMessage = "Execution did not complete"
		}
		run.Results[i].DurationSeconds = 0.5
	}
}
