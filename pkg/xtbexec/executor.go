// Package xtbexec is the XTB Executor (spec §4.5): it owns one computation
// start-to-finish — scratch directory, subprocess lifecycle, and handing the
// captured stdout to the Parser Cascade and Quality Assessor. The argv-vector
// subprocess construction (no shell, explicit cwd) is grounded on
// pkg/mcp/transport.go's createStdioTransport; the "assemble full result,
// score it, emit it, return" shape is grounded on RealSessionExecutor.Execute
// in pkg/queue/executor.go.
package xtbexec

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/quantum-forge/orchestrator-core/pkg/config"
	"github.com/quantum-forge/orchestrator-core/pkg/logging"
	"github.com/quantum-forge/orchestrator-core/pkg/models"
	"github.com/quantum-forge/orchestrator-core/pkg/parser"
	"github.com/quantum-forge/orchestrator-core/pkg/quality"
)

// stderrTailLimit bounds how much of stderr is retained as error_message
// (spec §7 *Convergence* row: "stderr tail, bounded, ~2 KB").
const stderrTailLimit = 2048

// Result is the XTB Executor's structured outcome (spec §4.5 contract).
type Result struct {
	Success           bool
	Energy            *float64
	Parsed            *parser.Result
	Results           *models.Results
	ExecutionTime     time.Duration
	ConvergenceStatus string
	ErrorMessage      string
}

// Executor runs one xTB computation per call to Run. It is safe for
// concurrent use: each Run gets its own scratch directory and subprocess.
type Executor struct {
	cfg     config.XTBConfig
	cascade *parser.Cascade
	emitter *logging.Emitter
}

// New builds an Executor. emitter may be nil to disable the Logging Emitter
// step (e.g. in tests).
func New(cfg config.XTBConfig, emitter *logging.Emitter) *Executor {
	return &Executor{cfg: cfg, cascade: parser.NewCascade(), emitter: emitter}
}

// Run executes job's computation end to end: builds the scratch directory
// and argv, runs the subprocess under ctx (layering timeout beneath
// whatever deadline ctx already carries), parses the result, scores it, and
// emits it to the DataStore on success (spec §4.5 steps 1-7).
//
// cancelRequested is polled after the subprocess exits so an operator
// cancellation that raced the natural completion still surfaces as
// "cancelled" rather than a false success (spec §4.5 Cancellation, §5).
func (e *Executor) Run(ctx context.Context, job *models.Job, timeout time.Duration, cancelRequested func() bool) *Result {
	workDir := filepath.Join(e.cfg.WorkDir, job.JobID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return &Result{ConvergenceStatus: "error", ErrorMessage: fmt.Sprintf("creating work directory: %v", err)}
	}

	xyzName := job.MoleculeName + ".xyz"
	if err := os.WriteFile(filepath.Join(workDir, xyzName), []byte(job.XYZContent), 0o644); err != nil {
		return &Result{ConvergenceStatus: "error", ErrorMessage: fmt.Sprintf("writing input geometry: %v", err)}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := buildArgv(e.cfg.BinaryPath, xyzName, job.OptimizationLevel, job.Charge, job.Multiplicity)

	start := time.Now()
	stdout, stderrTail, runErr := e.runSubprocess(runCtx, argv, workDir)
	elapsed := time.Since(start)

	if cancelRequested != nil && cancelRequested() {
		return &Result{
			ExecutionTime:     elapsed,
			ConvergenceStatus: "error",
			ErrorMessage:      "cancelled",
		}
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return &Result{
			ExecutionTime:     elapsed,
			ConvergenceStatus: "error",
			ErrorMessage:      fmt.Sprintf("timeout after %d seconds", int(timeout.Seconds())),
		}
	}

	exitOK := runErr == nil || isWarningExit(runErr)
	if !exitOK {
		return &Result{
			ExecutionTime:     elapsed,
			ConvergenceStatus: "error",
			ErrorMessage:      stderrTail,
		}
	}

	parsed := e.cascade.Parse(stdout, workDir)
	if parsed.Unparseable() {
		return &Result{
			ExecutionTime:     elapsed,
			ConvergenceStatus: "error",
			ErrorMessage:      "unparseable xTB output",
		}
	}

	metrics := quality.Assess(parsed, nil)
	results := toModelResults(parsed, metrics, elapsed)

	if e.emitter != nil {
		e.emitter.EmitRun(context.Background(), logging.Run{Job: job, Result: results, Quality: metrics})
	}

	return &Result{
		Success:           true,
		Energy:            parsed.Energy,
		Parsed:            parsed,
		Results:           results,
		ExecutionTime:     elapsed,
		ConvergenceStatus: parsed.ConvergenceStatus,
	}
}

// buildArgv constructs the xTB argv vector exactly as spec §6 mandates: the
// binary, the XYZ filename, --opt <level>, --json, --chrg <n>, --uhf <m-1>.
// No shell is invoked.
func buildArgv(binary, xyzName string, level models.OptimizationLevel, charge, multiplicity int) []string {
	return []string{
		binary,
		xyzName,
		"--opt", string(level),
		"--json",
		"--chrg", strconv.Itoa(charge),
		"--uhf", strconv.Itoa(multiplicity - 1),
	}
}

// runSubprocess launches argv[0] with argv[1:] as arguments (no shell), cwd
// set to workDir, in its own process group so the whole group can be
// signalled on cancellation or timeout.
func (e *Executor) runSubprocess(ctx context.Context, argv []string, workDir string) (stdout []byte, stderrTail string, err error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdoutBuf bytes.Buffer
	tail := newTailBuffer(stderrTailLimit)
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = tail

	cmd.Cancel = func() error {
		return terminateProcessGroup(cmd, e.cfg.TerminationGrace)
	}

	runErr := cmd.Run()
	return stdoutBuf.Bytes(), tail.String(), runErr
}

// terminateProcessGroup signals SIGTERM to the subprocess's process group,
// waits up to grace, then SIGKILLs it (spec §4.5 Cancellation, §5).
func terminateProcessGroup(cmd *exec.Cmd, grace time.Duration) error {
	if cmd.Process == nil {
		return nil
	}
	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	if err != nil {
		return cmd.Process.Kill()
	}

	_ = syscall.Kill(-pgid, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(grace):
		return syscall.Kill(-pgid, syscall.SIGKILL)
	}
}

// isWarningExit reports whether err represents xTB's exit code 1 (warnings
// but usable output, treated as success per spec §6 binary contract).
func isWarningExit(err error) bool {
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return false
	}
	return exitErr.ExitCode() == 1
}

func toModelResults(p *parser.Result, m *quality.Metrics, elapsed time.Duration) *models.Results {
	return &models.Results{
		Energy:            p.Energy,
		HomoLumoGap:       p.HomoLumoGap,
		Gap:               p.Gap,
		Homo:              p.Homo,
		Lumo:              p.Lumo,
		Dipole:            p.Dipole,
		Charges:           p.Charges,
		Forces:            p.Forces,
		OptimizedGeometry: p.OptimizedGeometry,
		ConvergenceStatus: p.ConvergenceStatus,
		AtomCount:         p.AtomCount,
		GradientNorm:      p.GradientNorm,
		HomoEstimated:     p.HomoEstimated,
		ExecutionTime:     elapsed.Seconds(),
		Method:            "GFN2-xTB",
		QualityScore:      m.Overall,
		IsMLReady:         m.IsMLReady(),
		QualityDimensions: models.QualityDimensions{
			Completeness: m.Completeness,
			Validity:     m.Validity,
			Consistency:  m.Consistency,
			Uniqueness:   m.Uniqueness,
		},
	}
}
