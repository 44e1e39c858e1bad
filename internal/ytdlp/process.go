package ytdlp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"

	"github.com/desertthunder/musix/internal/shared"
)

// Stream names the pipe a [Line] came from.
type Stream string

const (
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Line is one line of process output.
type Line struct {
	Stream Stream
	Text   string
}

// ProcessHandle is a running download.
type ProcessHandle interface {
	// Lines delivers output until both pipes close, then is closed.
	Lines() <-chan Line
	// Wait blocks until the process exits. Lines must be drained first.
	Wait() error
}

// ProcessError is a download that exited non-zero.
type ProcessError struct {
	ExitCode int
	Stderr   string // last lines of stderr
}

func (e *ProcessError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%v: exit code %d", shared.ErrDownloadProcess, e.ExitCode)
	}
	return fmt.Sprintf("%v: exit code %d: %s", shared.ErrDownloadProcess, e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error { return shared.ErrDownloadProcess }

// SpawnError is a download that never started.
type SpawnError struct {
	Err error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("%v: %v", shared.ErrDownloadSpawn, e.Err)
}

func (e *SpawnError) Unwrap() []error { return []error{shared.ErrDownloadSpawn, e.Err} }

const stderrTailLines = 10

type process struct {
	ctx   context.Context
	cmd   *exec.Cmd
	lines chan Line
	wg    sync.WaitGroup

	mu   sync.Mutex
	tail []string
}

func start(ctx context.Context, cmd *exec.Cmd) (*process, error) {
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, &SpawnError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, &SpawnError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Err: err}
	}

	p := &process{ctx: ctx, cmd: cmd, lines: make(chan Line, 64)}
	p.wg.Add(2)
	go p.read(StreamStdout, stdout)
	go p.read(StreamStderr, stderr)
	go func() {
		p.wg.Wait()
		close(p.lines)
	}()
	return p, nil
}

func (p *process) read(stream Stream, r io.Reader) {
	defer p.wg.Done()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	scanner.Split(splitByNewlineOrCR)

	for scanner.Scan() {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if stream == StreamStderr {
			p.keep(text)
		}
		p.lines <- Line{Stream: stream, Text: text}
	}

	// The pipe must keep draining or the process blocks on write and never exits.
	if err := scanner.Err(); err != nil {
		p.keep(fmt.Sprintf("%s: %v", stream, err))
		_, _ = io.Copy(io.Discard, r)
	}
}

func (p *process) keep(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tail = append(p.tail, line)
	if len(p.tail) > stderrTailLines {
		p.tail = p.tail[len(p.tail)-stderrTailLines:]
	}
}

func (p *process) Lines() <-chan Line { return p.lines }

func (p *process) Wait() error {
	p.wg.Wait()
	err := p.cmd.Wait()
	if err == nil {
		return nil
	}

	if p.ctx.Err() != nil {
		return fmt.Errorf("%w: %w", shared.ErrCancelled, p.ctx.Err())
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		p.mu.Lock()
		tail := strings.Join(p.tail, "\n")
		p.mu.Unlock()
		return &ProcessError{ExitCode: exitErr.ExitCode(), Stderr: tail}
	}
	return &SpawnError{Err: err}
}

// Follow calls fn for every line of h, then waits for it to exit.
func Follow(h ProcessHandle, fn func(Line)) error {
	for line := range h.Lines() {
		if fn != nil {
			fn(line)
		}
	}
	return h.Wait()
}

func splitByNewlineOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	for i, b := range data {
		if b == '\n' || b == '\r' {
			return i + 1, data[:i], nil
		}
	}
	if atEOF && len(data) > 0 {
		return len(data), data, nil
	}
	return 0, nil, nil
}
