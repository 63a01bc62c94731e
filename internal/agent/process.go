package agent

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
)

// Host spawns agent processes. The orchestration core only consumes the
// text an agent prints and the text it accepts; everything else about the
// transport is the host's concern.
type Host interface {
	// Start launches an agent with the given prompt in workdir and
	// returns a handle to its running process.
	Start(ctx context.Context, prompt, workdir string) (Process, error)
}

// Process is a handle to one running agent.
type Process interface {
	// Lines streams the agent's stdout line by line. The channel closes
	// when the process's output ends.
	Lines() <-chan string
	// Send writes a line of text to the agent's stdin.
	Send(text string) error
	// Wait blocks until the process exits and returns its exit error.
	Wait() error
	// Kill terminates the process.
	Kill()
}

// CLIHost runs agents as subprocesses of a coding-agent CLI
// (by default "claude"), handing the prompt via -p and streaming
// plain-text output.
type CLIHost struct {
	// Command is the agent CLI binary.
	Command string
	// ExtraArgs are inserted before the prompt flag.
	ExtraArgs []string
}

// NewCLIHost creates a host for the given agent command.
func NewCLIHost(command string) *CLIHost {
	if command == "" {
		command = "claude"
	}
	return &CLIHost{Command: command, ExtraArgs: []string{"--print"}}
}

// CheckInstalled verifies the agent CLI is on PATH.
func (h *CLIHost) CheckInstalled() error {
	if _, err := exec.LookPath(h.Command); err != nil {
		return fmt.Errorf("%s CLI not found in PATH\n\n"+
			"foreman drives coding agents through the %s command line.\n"+
			"Install it and make sure it is on your PATH.", h.Command, h.Command)
	}
	return nil
}

// Start launches the agent subprocess.
func (h *CLIHost) Start(ctx context.Context, prompt, workdir string) (Process, error) {
	args := append(append([]string{}, h.ExtraArgs...), "-p", prompt)
	cmd := exec.CommandContext(ctx, h.Command, args...)
	if workdir != "" {
		cmd.Dir = workdir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", h.Command, err)
	}

	p := &cliProcess{
		cmd:    cmd,
		stdin:  stdin,
		lines:  make(chan string, 64),
		waitCh: make(chan error, 1),
	}
	go p.readLines(stdout)
	go func() { p.waitCh <- cmd.Wait() }()
	return p, nil
}

type cliProcess struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	lines  chan string
	waitCh chan error

	mu     sync.Mutex
	killed bool
}

func (p *cliProcess) readLines(stdout io.Reader) {
	defer close(p.lines)
	scanner := bufio.NewScanner(stdout)
	// Agent output lines can be long; raise the scan limit well past the
	// bufio default.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		p.lines <- scanner.Text()
	}
}

func (p *cliProcess) Lines() <-chan string { return p.lines }

func (p *cliProcess) Send(text string) error {
	_, err := io.WriteString(p.stdin, text+"\n")
	return err
}

func (p *cliProcess) Wait() error {
	return <-p.waitCh
}

func (p *cliProcess) Kill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.killed {
		return
	}
	p.killed = true
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
}
