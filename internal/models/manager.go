package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
	"github.com/minutelabs/minute-core/internal/config"
)

// Result mirrors the JSON object the external model-management tool
// prints before exiting.
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

// Manager invokes the external tool that downloads and validates local
// diarization models for the engine. One call per operation; the tool is
// expected to print a single JSON object on stdout.
type Manager struct {
	cmd     []string
	timeout time.Duration
	log     *slog.Logger
}

func NewManager(cfg config.ModelsConfig, log *slog.Logger) (*Manager, error) {
	m := &Manager{
		timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		log:     log.With(slog.String("component", "models")),
	}
	if strings.TrimSpace(cfg.Command) == "" {
		return m, nil
	}
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse models command: %w", err)
	}
	m.cmd = args
	return m, nil
}

// Configured reports whether a tool command has been set.
func (m *Manager) Configured() bool {
	return len(m.cmd) > 0
}

// Download fetches a model repository into dest.
func (m *Manager) Download(ctx context.Context, repoID, dest, token string) Result {
	args := []string{"download", "--repo-id", repoID, "--dest", dest}
	if token != "" {
		args = append(args, "--token", token)
	}
	return m.run(ctx, args...)
}

// Validate checks that a local model path is loadable.
func (m *Manager) Validate(ctx context.Context, path string) Result {
	return m.run(ctx, "validate", "--path", path)
}

func (m *Manager) run(ctx context.Context, args ...string) Result {
	if !m.Configured() {
		return Result{OK: false, Message: "model manager command not configured"}
	}

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	base := m.cmd[0]
	cmdArgs := append(append([]string{}, m.cmd[1:]...), args...)
	cmd := exec.CommandContext(ctx, base, cmdArgs...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	var res Result
	if err := json.Unmarshal(bytes.TrimSpace(stdout.Bytes()), &res); err != nil {
		// no usable JSON: fold every diagnostic we have into the message
		parts := []string{}
		if runErr != nil {
			parts = append(parts, runErr.Error())
		}
		if s := strings.TrimSpace(stderr.String()); s != "" {
			parts = append(parts, s)
		}
		if s := strings.TrimSpace(stdout.String()); s != "" {
			parts = append(parts, s)
		}
		if len(parts) == 0 {
			parts = append(parts, "model manager produced no output")
		}
		m.log.Warn("model manager call failed", slog.String("args", strings.Join(args, " ")))
		return Result{OK: false, Message: strings.Join(parts, ": ")}
	}

	if runErr != nil && res.OK {
		// the tool printed ok but exited non-zero; trust the exit code
		res.OK = false
		res.Message = fmt.Sprintf("%s (exit: %v)", res.Message, runErr)
	}
	return res
}
