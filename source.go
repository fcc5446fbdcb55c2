package dvfs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Source supplies the raw text of one document, an IORegistry dump or a
// powermetrics sample. Open returns the
// reader together with a release function the caller must invoke once the
// text has been consumed; release may be nil.
type Source interface {
	Name() string
	Open(ctx context.Context) (io.Reader, func() error, error)
}

// FileSource reads a dump saved to disk (plain text or .ioreg).
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return s.Path }

func (s FileSource) Open(context.Context) (io.Reader, func() error, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// ReaderSource wraps an already open reader. The caller keeps ownership.
type ReaderSource struct {
	Label  string
	Reader io.Reader
}

func (s ReaderSource) Name() string {
	if s.Label == "" {
		return "reader"
	}
	return s.Label
}

func (s ReaderSource) Open(context.Context) (io.Reader, func() error, error) {
	if s.Reader == nil {
		return nil, nil, fmt.Errorf("reader cannot be nil")
	}
	return s.Reader, nil, nil
}

// CommandSource runs an external command, ioreg by default, and reads the
// live registry dump from its standard output.
type CommandSource struct {
	Path string
	Args []string
}

// NewCommandSource builds the live-registry source described by cfg.
func NewCommandSource(cfg Config) CommandSource {
	normalized := normalizeConfig(cfg)
	return CommandSource{Path: normalized.IoregPath, Args: normalized.IoregArgs}
}

// NewPowermetricsSource builds the source that samples the live frequency
// ladder. powermetrics must run as root.
func NewPowermetricsSource(cfg Config) CommandSource {
	normalized := normalizeConfig(cfg)
	return CommandSource{Path: normalized.PowermetricsPath, Args: normalized.PowermetricsArgs}
}

func (s CommandSource) Name() string { return s.Path }

func (s CommandSource) Open(ctx context.Context) (io.Reader, func() error, error) {
	cmd := exec.CommandContext(ctx, s.Path, s.Args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, nil, err
	}

	if err := cmd.Start(); err != nil {
		return nil, nil, err
	}

	wait := func() error {
		if err := cmd.Wait(); err != nil {
			if msg := bytes.TrimSpace(stderr.Bytes()); len(msg) > 0 {
				return fmt.Errorf("%w: %s", err, msg)
			}
			return err
		}
		return nil
	}

	return stdout, wait, nil
}
