package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-testgen-gateway/internal/domain"
	"github.com/tbourn/go-testgen-gateway/internal/observability"
)

// Container limits.
const (
	memoryLimit = "128m"
	cpuLimit    = "0.5"
	pidsLimit   = "50"
	nobodyUID   = "65534"
)

const (
	defaultMaxOutput = 64 << 10
	cleanupTimeout   = 5 * time.Second
)

// inContainer writes stdin to a file and runs pytest on it.
const inContainer = "cat > /tmp/test_solution.py && python -m pytest -q -p no:cacheprovider /tmp/test_solution.py"

// Runner executes tasks in a fresh container via the docker or podman CLI.
type Runner struct {
	Runtime   string
	Image     string
	Timeout   time.Duration
	MaxOutput int

	command func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewRunner returns a runner for runtime ("docker" or "podman").
func NewRunner(runtime, image string, timeout time.Duration) *Runner {
	return &Runner{
		Runtime:   runtime,
		Image:     image,
		Timeout:   timeout,
		MaxOutput: defaultMaxOutput,
		command:   exec.CommandContext,
	}
}

// Args returns the container invocation for a container called name.
func (r *Runner) Args(name string) []string {
	return []string{
		"run", "-i", "--rm",
		"--name", name,
		"--memory=" + memoryLimit, "--memory-swap=" + memoryLimit,
		"--cpus=" + cpuLimit,
		"--pids-limit=" + pidsLimit,
		"--network=none",
		"--cap-drop=ALL",
		"--security-opt=no-new-privileges",
		"--read-only",
		"--tmpfs", "/tmp:rw,size=16m",
		"--user", nobodyUID,
		"--env", "PYTHONDONTWRITEBYTECODE=1",
		r.Image,
		"sh", "-c", inContainer,
	}
}

// Available checks that the container runtime answers.
func (r *Runner) Available(ctx context.Context) error {
	cmd := r.command(ctx, r.Runtime, "version")
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s version: %w: %s", r.Runtime, err, strings.TrimSpace(string(out)))
	}
	return nil
}

// Run executes task and reports the verdict. It never returns an error:
// failures become a result with Success false.
func (r *Runner) Run(ctx context.Context, task domain.ExecutionTask) domain.ExecutionResult {
	if !strings.EqualFold(strings.TrimSpace(task.Language), "python") {
		observability.SandboxRuns.WithLabelValues("rejected").Inc()
		return domain.ExecutionResult{Error: "unsupported language"}
	}
	log := zerolog.Ctx(ctx)
	name := "testgen-" + uuid.NewString()
	program := task.InputCode + "\n\n" + task.TestCode + "\n"

	runCtx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := r.command(runCtx, r.Runtime, r.Args(name)...)
	cmd.Stdin = strings.NewReader(program)
	out := &limitedBuffer{limit: r.MaxOutput}
	cmd.Stdout = out
	cmd.Stderr = out
	cmd.WaitDelay = time.Second

	start := time.Now()
	err := cmd.Run()
	r.remove(ctx, name)

	res := domain.ExecutionResult{Output: out.String()}
	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		observability.SandboxRuns.WithLabelValues("timeout").Inc()
		res.Error = fmt.Sprintf("execution timed out after %s", r.Timeout)
	case err == nil:
		observability.SandboxRuns.WithLabelValues("passed").Inc()
		res.Success = true
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			observability.SandboxRuns.WithLabelValues("failed").Inc()
			res.Error = fmt.Sprintf("tests failed (exit code %d)", exitErr.ExitCode())
		} else {
			observability.SandboxRuns.WithLabelValues("error").Inc()
			log.Error().Err(err).Msg("sandbox start failed")
			res.Error = "sandbox unavailable"
		}
	}
	log.Info().Str("container", name).Bool("success", res.Success).Dur("took", time.Since(start)).Msg("sandbox run finished")
	return res
}

// remove force-kills the container. It usually no longer exists (--rm);
// after a timeout it may still be running.
func (r *Runner) remove(ctx context.Context, name string) {
	rmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	_ = r.command(rmCtx, r.Runtime, "rm", "-f", name).Run()
}

// limitedBuffer keeps the first limit bytes written to it.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
			b.truncated = true
		} else {
			b.buf.Write(p)
		}
	} else if len(p) > 0 {
		b.truncated = true
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	if b.truncated {
		return b.buf.String() + "\n[output truncated]"
	}
	return b.buf.String()
}
