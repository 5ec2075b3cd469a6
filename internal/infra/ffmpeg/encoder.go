// Package ffmpeg drives the ffprobe and ffmpeg binaries.
package ffmpeg

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"media-transcoder/internal/config"
	"media-transcoder/internal/domain"
	"media-transcoder/internal/domain/ports/adapter"
)

var _ adapter.Encoder = (*Encoder)(nil)

// commandResult is an internal process execution response.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts short-lived process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, name string, args ...string) (commandResult, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) (commandResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := commandResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		return res, err
	}
	return res, nil
}

type Encoder struct {
	ffmpegPath  string
	ffprobePath string
	runner      commandRunner
}

func NewEncoder(cfg config.EncoderConfig) *Encoder {
	return &Encoder{
		ffmpegPath:  cfg.FFmpegPath,
		ffprobePath: cfg.FFprobePath,
		runner:      execRunner{},
	}
}

// Params converts encoder config into per-request parameters.
func Params(cfg config.EncoderConfig) adapter.EncodeParams {
	return adapter.EncodeParams{
		VideoCodec: cfg.VideoCodec,
		AudioCodec: cfg.AudioCodec,
		Strict:     cfg.Strict,
		Threads:    cfg.Threads,
		ExtraArgs:  append([]string(nil), cfg.ExtraArgs...),
	}
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the container duration reported by ffprobe. Any failure,
// including a missing or non-positive duration, wraps domain.ErrProbeFailure.
func (e *Encoder) Probe(ctx context.Context, inputPath string) (time.Duration, error) {
	args := []string{"-v", "error", "-show_format", "-of", "json", inputPath}
	res, err := e.runner.Run(ctx, e.ffprobePath, args...)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", domain.ErrProbeFailure, &CommandError{
			Stage: "probe", Command: e.ffprobePath, Args: args, Stderr: res.Stderr, Err: err,
		})
	}

	var out probeOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return 0, fmt.Errorf("%w: decode ffprobe output: %v", domain.ErrProbeFailure, err)
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(out.Format.Duration), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: duration %q: %v", domain.ErrProbeFailure, out.Format.Duration, err)
	}
	if secs <= 0 {
		return 0, fmt.Errorf("%w: non-positive duration %v", domain.ErrProbeFailure, secs)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// BuildArgs returns the ffmpeg argument list for req. Progress records go to
// stdout and diagnostics to stderr.
func BuildArgs(req adapter.EncodeRequest) []string {
	p := req.Params
	args := []string{"-hide_banner", "-nostdin", "-y", "-i", req.InputPath}
	if p.VideoCodec != "" {
		args = append(args, "-c:v", p.VideoCodec)
	}
	if p.AudioCodec != "" {
		args = append(args, "-c:a", p.AudioCodec)
	}
	if p.Strict != "" {
		args = append(args, "-strict", p.Strict)
	}
	if p.Threads > 0 {
		args = append(args, "-threads", strconv.Itoa(p.Threads))
	}
	args = append(args, p.ExtraArgs...)
	args = append(args, "-progress", "pipe:1", "-nostats", req.OutputPath)
	return args
}

// Start launches ffmpeg. The process is not bound to ctx once started; a
// running encode is never cancelled.
func (e *Encoder) Start(ctx context.Context, req adapter.EncodeRequest) (adapter.EncodeProcess, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrLaunchFailure, err)
	}
	args := BuildArgs(req)
	cmd := exec.Command(e.ffmpegPath, args...)

	launchErr := func(err error) error {
		return fmt.Errorf("%w: %w", domain.ErrLaunchFailure, &CommandError{
			Stage: "launch", Command: e.ffmpegPath, Args: args, Err: err,
		})
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, launchErr(err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, launchErr(err)
	}
	if err := cmd.Start(); err != nil {
		return nil, launchErr(err)
	}
	return &process{cmd: cmd, stdout: stdout, stderr: stderr, name: e.ffmpegPath}, nil
}

type process struct {
	cmd    *exec.Cmd
	stdout io.Reader
	stderr io.Reader
	name   string
}

func (p *process) Progress() io.Reader    { return p.stdout }
func (p *process) Diagnostics() io.Reader { return p.stderr }

// Wait reaps the process. A non-zero exit is returned as *ExitError.
func (p *process) Wait() error {
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Command: p.name, Code: exitErr.ExitCode(), Err: err}
	}
	return fmt.Errorf("%w: wait %s: %v", domain.ErrProcessFailure, p.name, err)
}
