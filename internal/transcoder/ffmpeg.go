// Package transcoder time-reverses audio by shelling out to ffmpeg.
package transcoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrEmptyInput is returned when there is no audio to reverse.
var ErrEmptyInput = errors.New("empty audio input")

// Reverser turns audio bytes into time-reversed audio bytes.
type Reverser interface {
	Reverse(ctx context.Context, input []byte) ([]byte, error)
}

type runFunc func(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error)

// FFmpeg reverses audio through the areverse filter, streaming through
// stdin and stdout.
type FFmpeg struct {
	path string
	run  runFunc
}

var _ Reverser = (*FFmpeg)(nil)

// NewFFmpeg returns a Reverser running the binary at path ("ffmpeg" when empty).
func NewFFmpeg(path string) *FFmpeg {
	if path == "" {
		path = "ffmpeg"
	}
	return &FFmpeg{path: path, run: runCommand}
}

func (f *FFmpeg) Reverse(ctx context.Context, input []byte) ([]byte, error) {
	if len(input) == 0 {
		return nil, ErrEmptyInput
	}
	out, err := f.run(ctx, f.path, reverseArgs(), input)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg reverse failed: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("ffmpeg produced no output")
	}
	return out, nil
}

func reverseArgs() []string {
	return []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-af", "areverse",
		"-c:a", "libopus",
		"-f", "webm",
		"pipe:1",
	}
}

func runCommand(ctx context.Context, name string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = bytes.NewReader(stdin)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return stdout.Bytes(), nil
}
