// Package shell runs toolchain processes for the backends.
package shell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/creack/pty"
	"go.trai.ch/wasmblock/internal/core/domain"
	"go.trai.ch/wasmblock/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Executor = (*Executor)(nil)

// waitDelay bounds how long Execute waits for output pipes after the process was killed.
const waitDelay = 2 * time.Second

// Executor implements ports.Executor using os/exec.
type Executor struct {
	logger   ports.Logger
	sysEnv   []string
	extraEnv []string
	passEnv  map[string]struct{}
	color    bool
	echo     bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithEnv adds KEY=VALUE entries to every process, after the inherited system variables.
func WithEnv(env []string) Option {
	return func(e *Executor) {
		e.extraEnv = append(e.extraEnv, env...)
	}
}

// WithPassEnv lets additional system variables through to processes.
func WithPassEnv(names []string) Option {
	return func(e *Executor) {
		for _, n := range names {
			e.passEnv[n] = struct{}{}
		}
	}
}

// WithColorDiagnostics attaches stderr to a pseudo-terminal so toolchains emit colored diagnostics.
func WithColorDiagnostics(enable bool) Option {
	return func(e *Executor) {
		e.color = enable
	}
}

// WithEcho mirrors every stderr line of every process to the logger.
func WithEcho(enable bool) Option {
	return func(e *Executor) {
		e.echo = enable
	}
}

// NewExecutor creates a new Executor.
func NewExecutor(logger ports.Logger, opts ...Option) *Executor {
	e := &Executor{
		logger:  logger,
		sysEnv:  os.Environ(),
		passEnv: make(map[string]struct{}, len(allowListedEnvVars)),
	}
	for k := range allowListedEnvVars {
		e.passEnv[k] = struct{}{}
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the command and waits for it to complete.
func (e *Executor) Execute(ctx context.Context, cmd *domain.Command, stdout, stderr io.Writer) error {
	if cmd == nil || cmd.Name == "" {
		return zerr.New("empty command")
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	env := e.environment(cmd.Env)

	executable := cmd.Name
	if !strings.ContainsRune(executable, filepath.Separator) {
		lp, err := lookPath(executable, env)
		if err != nil {
			return zerr.With(zerr.Wrap(err, "executable not found"), "tool", cmd.Name)
		}
		executable = lp
	}

	c := exec.CommandContext(ctx, executable, cmd.Args...) //nolint:gosec // toolchain command
	c.Args[0] = cmd.Name
	c.Dir = cmd.Dir
	c.Env = env
	c.WaitDelay = waitDelay
	c.Stdout = stdout
	killProcessGroup(c)

	if e.echo {
		stderrLog := &logWriter{logger: e.logger}
		defer func() { _ = stderrLog.Close() }()
		stderr = io.MultiWriter(stderr, stderrLog)
	}

	var err error
	if e.color {
		err = runWithPTY(c, stderr)
	} else {
		c.Stderr = stderr
		err = c.Run()
	}

	if err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = errors.Join(err, ctxErr)
		}
		return zerr.With(zerr.With(zerr.Wrap(err, "command failed"), "exit_code", exitCode), "tool", cmd.Name)
	}

	return nil
}

// LookPath resolves name against the PATH processes run with.
func (e *Executor) LookPath(name string) (string, error) {
	if strings.ContainsRune(name, filepath.Separator) {
		if err := findExecutable(name); err != nil {
			return "", err
		}
		return name, nil
	}
	return lookPath(name, e.environment(nil))
}

// runWithPTY runs c with its stderr attached to a pseudo-terminal and copies the terminal output to stderr.
// Stdin stays detached so scripts cannot block on input.
func runWithPTY(c *exec.Cmd, stderr io.Writer) error {
	ptmx, tty, err := pty.Open()
	if err != nil {
		c.Stderr = stderr
		return c.Run()
	}
	c.Stderr = tty

	if err := c.Start(); err != nil {
		_ = tty.Close()
		_ = ptmx.Close()
		return err
	}
	// The child holds its own copy of the terminal.
	_ = tty.Close()

	ioDone := make(chan struct{})
	go func() {
		defer close(ioDone)
		// Reading the master fails with EIO once every slave descriptor is closed.
		_, _ = io.Copy(stderr, ptmx)
	}()

	err = c.Wait()

	select {
	case <-ioDone:
	case <-time.After(waitDelay):
	}
	_ = ptmx.Close()
	<-ioDone

	return err
}

type logWriter struct {
	logger ports.Logger
	buf    []byte
}

func (w *logWriter) Write(p []byte) (n int, err error) {
	w.buf = append(w.buf, p...)

	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		w.logLine(w.buf[:i])
		w.buf = w.buf[i+1:]
	}

	return len(p), nil
}

func (w *logWriter) Close() error {
	if len(w.buf) > 0 {
		w.logLine(w.buf)
		w.buf = nil
	}
	return nil
}

func (w *logWriter) logLine(line []byte) {
	// Terminals may introduce \r.
	msg := strings.TrimSuffix(string(line), "\r")
	if msg == "" {
		return
	}
	w.logger.Warn(msg)
}

// allowListedEnvVars are the system environment variables toolchains inherit by default.
// Everything else has to be requested through pass_env or set in the env file.
var allowListedEnvVars = map[string]struct{}{
	"HOME":                 {},
	"TERM":                 {},
	"USER":                 {},
	"PATH":                 {},
	"TMPDIR":               {},
	"LANG":                 {},
	"GOPATH":               {},
	"GOCACHE":              {},
	"GOROOT":               {},
	"GOMODCACHE":           {},
	"CARGO_HOME":           {},
	"RUSTUP_HOME":          {},
	"RUSTUP_TOOLCHAIN":     {},
	"EMSDK":                {},
	"EM_CONFIG":            {},
	"EM_CACHE":             {},
	"TINYGOROOT":           {},
	"ZIG_GLOBAL_CACHE_DIR": {},
}

// environment merges the allow-listed system variables, the configured extra entries and the command entries.
// Later entries win. A PATH in the extra entries is prepended to the system PATH.
func (e *Executor) environment(cmdEnv []string) []string {
	return resolveEnvironment(e.sysEnv, e.passEnv, e.extraEnv, cmdEnv)
}

func resolveEnvironment(sysEnv []string, allowed map[string]struct{}, extraEnv, cmdEnv []string) []string {
	envMap := filterSystemEnv(sysEnv, allowed)
	keys := make([]string, 0, len(envMap)+len(extraEnv)+len(cmdEnv))
	for _, entry := range sysEnv {
		if k, _, ok := strings.Cut(entry, "="); ok {
			if _, kept := envMap[k]; kept {
				keys = appendKey(keys, k)
			}
		}
	}

	for _, entry := range extraEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		if k == "PATH" {
			if sysPath := envMap["PATH"]; sysPath != "" {
				v = v + string(os.PathListSeparator) + sysPath
			}
		}
		envMap[k] = v
		keys = appendKey(keys, k)
	}

	for _, entry := range cmdEnv {
		k, v, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		envMap[k] = v
		keys = appendKey(keys, k)
	}

	result := make([]string, 0, len(keys))
	for _, k := range keys {
		result = append(result, k+"="+envMap[k])
	}
	return result
}

func appendKey(keys []string, k string) []string {
	for _, existing := range keys {
		if existing == k {
			return keys
		}
	}
	return append(keys, k)
}

func filterSystemEnv(sysEnv []string, allowed map[string]struct{}) map[string]string {
	envMap := make(map[string]string)
	for _, entry := range sysEnv {
		k, v, ok := strings.Cut(entry, "=")
		if ok {
			if _, ok := allowed[k]; ok {
				envMap[k] = v
			}
		}
	}
	return envMap
}

// lookPath searches for an executable in the directories named by the PATH entry of env.
func lookPath(file string, env []string) (string, error) {
	var path string
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			path = strings.TrimPrefix(e, "PATH=")
			break
		}
	}

	if path == "" {
		return "", exec.ErrNotFound
	}

	for _, dir := range filepath.SplitList(path) {
		if dir == "" {
			// Unix shell semantics: path element "" means "."
			dir = "."
		}
		path := filepath.Join(dir, file)
		if err := findExecutable(path); err == nil {
			return path, nil
		}
	}
	return "", exec.ErrNotFound
}

func findExecutable(file string) error {
	d, err := os.Stat(file)
	if err != nil {
		return err
	}
	if m := d.Mode(); !m.IsDir() && m&0o111 != 0 {
		return nil
	}
	return os.ErrPermission
}
