package engine

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"
)

// stopGrace is how long a stopped engine gets to exit on its own before
// the supervisor escalates to an unconditional kill.
const stopGrace = 3 * time.Second

// Supervisor owns the lifecycle of the external transcription engine
// process. At most one process is tracked at a time; all spawning and
// signalling goes through its methods.
type Supervisor struct {
	packagedRoot string
	devRoot      string
	entry        string
	extraArgs    []string
	env          []string
	log          *slog.Logger

	interpreters []string

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// NewSupervisor builds a supervisor. busURL is handed to the engine via
// MINUTE_BUS_URL so it can connect back to the local channel.
func NewSupervisor(packagedRoot, devRoot, entry string, extraArgs []string, busURL string, log *slog.Logger) *Supervisor {
	var env []string
	if busURL != "" {
		env = append(env, "MINUTE_BUS_URL="+busURL)
	}
	return &Supervisor{
		packagedRoot: packagedRoot,
		devRoot:      devRoot,
		entry:        entry,
		extraArgs:    extraArgs,
		env:          env,
		log:          log.With(slog.String("component", "engine")),
		interpreters: interpreterCandidates(),
	}
}

func interpreterCandidates() []string {
	if runtime.GOOS == "windows" {
		return []string{"python.exe", "python"}
	}
	return []string{"python3", "python"}
}

// resolveEntry prefers the packaged engine root and falls back to the
// development tree.
func (s *Supervisor) resolveEntry() (string, error) {
	var roots []string
	if s.packagedRoot != "" {
		roots = append(roots, s.packagedRoot)
	}
	if s.devRoot != "" {
		roots = append(roots, s.devRoot)
	}
	for _, root := range roots {
		path := filepath.Join(root, s.entry)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("engine entry %q not found under %v", s.entry, roots)
}

// Start spawns the engine process if none is tracked. A missing entry
// script is a configuration fault reported to the caller; an interpreter
// that cannot be found advances to the next candidate, and any other spawn
// fault is logged and leaves no engine running.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cmd != nil {
		return nil
	}

	entry, err := s.resolveEntry()
	if err != nil {
		s.log.Error("engine entry missing", slog.String("error", err.Error()))
		return err
	}

	args := append([]string{entry}, s.extraArgs...)
	for _, interp := range s.interpreters {
		cmd := exec.Command(interp, args...)
		cmd.Dir = filepath.Dir(entry)
		cmd.Env = append(os.Environ(), s.env...)

		stdout, err := cmd.StdoutPipe()
		if err != nil {
			s.log.Error("engine stdout pipe failed", slog.String("error", err.Error()))
			return nil
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			s.log.Error("engine stderr pipe failed", slog.String("error", err.Error()))
			return nil
		}

		if err := cmd.Start(); err != nil {
			if errors.Is(err, exec.ErrNotFound) {
				s.log.Debug("interpreter not found", slog.String("interpreter", interp))
				continue
			}
			s.log.Error("engine spawn failed",
				slog.String("interpreter", interp),
				slog.String("error", err.Error()))
			return nil
		}

		done := make(chan struct{})
		s.cmd = cmd
		s.done = done
		s.log.Info("engine started",
			slog.String("interpreter", interp),
			slog.String("entry", entry),
			slog.Int("pid", cmd.Process.Pid))

		go s.forward(stdout, "stdout")
		go s.forward(stderr, "stderr")
		go s.watch(cmd, done)
		return nil
	}

	s.log.Error("no usable interpreter found", slog.Any("candidates", s.interpreters))
	return nil
}

// forward relays one engine output stream into the log, line by line.
func (s *Supervisor) forward(r io.Reader, stream string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		s.log.Info("engine output", slog.String("stream", stream), slog.String("line", line))
	}
}

// watch waits for process exit and clears the tracked handle so a later
// Start can retry. If Stop already cleared the handle the notification is
// ignored.
func (s *Supervisor) watch(cmd *exec.Cmd, done chan struct{}) {
	err := cmd.Wait()
	close(done)

	s.mu.Lock()
	tracked := s.cmd == cmd
	if tracked {
		s.cmd = nil
		s.done = nil
	}
	s.mu.Unlock()

	if tracked {
		if err != nil {
			s.log.Warn("engine exited", slog.String("error", err.Error()))
		} else {
			s.log.Info("engine exited")
		}
	}
}

// Running reports whether a process is currently tracked.
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// Stop requests graceful termination and escalates to a kill after the
// grace period. Safe to call with no tracked process and under concurrent
// invocation: only the first caller takes ownership of the handle.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cmd, done := s.cmd, s.done
	s.cmd = nil
	s.done = nil
	s.mu.Unlock()

	if cmd == nil {
		return
	}

	s.terminate(cmd.Process)

	select {
	case <-done:
	case <-time.After(stopGrace):
		s.log.Warn("engine did not exit in time, killing", slog.Duration("grace", stopGrace))
		_ = cmd.Process.Kill()
		<-done
	}
	s.log.Info("engine stopped")
}

func (s *Supervisor) terminate(p *os.Process) {
	if runtime.GOOS == "windows" {
		_ = p.Kill()
		return
	}
	if err := p.Signal(syscall.SIGTERM); err != nil {
		_ = p.Kill()
	}
}
