package cgi

import (
	"fmt"
	"os"
	"os/exec"
	"time"

	"golang.org/x/sys/unix"
)

// Process is a spawned CGI child being drained by the reactor. Its stdout
// fd is set non-blocking and handed to the poller under an io token
// distinct from the client connection's fd; Drain is safe to call whenever
// that token reports readable (or read-closed).
type Process struct {
	cmd       *exec.Cmd
	stdoutR   *os.File
	StdoutFd  int
	Output    []byte
	StartedAt time.Time
	exited    bool
	exitErr   error
}

// Spawn starts scriptPath (via interpreter, if set) with env as its CGI
// environment, writes body to its stdin synchronously, and returns once
// the child is running with a non-blocking stdout pipe ready to be
// registered with a poller.
func Spawn(scriptPath, interpreter string, body []byte, env []string) (*Process, error) {
	var cmd *exec.Cmd
	if interpreter != "" {
		cmd = exec.Command(interpreter, scriptPath)
	} else {
		cmd = exec.Command(scriptPath)
	}
	cmd.Env = env

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("cgi: stdin pipe: %w", err)
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("cgi: stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("cgi: start %s: %w", scriptPath, err)
	}
	stdoutW.Close()

	if len(body) > 0 {
		if _, err := stdin.Write(body); err != nil {
			stdin.Close()
			_ = cmd.Process.Kill()
			_, _ = cmd.Process.Wait()
			stdoutR.Close()
			return nil, fmt.Errorf("cgi: stdin write: %w", err)
		}
	}
	stdin.Close()

	fd := int(stdoutR.Fd())
	if err := unix.SetNonblock(fd, true); err != nil {
		_ = cmd.Process.Kill()
		_, _ = cmd.Process.Wait()
		stdoutR.Close()
		return nil, fmt.Errorf("cgi: set nonblocking: %w", err)
	}

	return &Process{
		cmd:       cmd,
		stdoutR:   stdoutR,
		StdoutFd:  fd,
		StartedAt: time.Now(),
	}, nil
}

// Drain reads everything currently buffered on the child's stdout without
// blocking, appending it to Output. It returns eof true once the pipe's
// write end has been closed (the child exited or closed stdout early).
func (p *Process) Drain() (eof bool, err error) {
	buf := make([]byte, 8192)
	for {
		n, readErr := unix.Read(p.StdoutFd, buf)
		if n > 0 {
			p.Output = append(p.Output, buf[:n]...)
		}
		switch {
		case readErr == unix.EAGAIN || readErr == unix.EWOULDBLOCK:
			return false, nil
		case readErr == unix.EINTR:
			continue
		case readErr != nil:
			return false, fmt.Errorf("cgi: stdout read: %w", readErr)
		case n == 0:
			return true, nil
		}
	}
}

// TryWait reports whether the child has exited, without blocking.
func (p *Process) TryWait() (exited bool, err error) {
	if p.exited {
		return true, p.exitErr
	}
	var ws unix.WaitStatus
	pid, err := unix.Wait4(p.cmd.Process.Pid, &ws, unix.WNOHANG, nil)
	if err != nil {
		return false, fmt.Errorf("cgi: wait4: %w", err)
	}
	if pid == 0 {
		return false, nil
	}
	p.exited = true
	if ws.ExitStatus() != 0 {
		p.exitErr = fmt.Errorf("cgi: %s exited with status %d", p.cmd.Path, ws.ExitStatus())
	}
	return true, p.exitErr
}

// Kill terminates the child and reaps it; used when the idle timeout
// elapses before the script finishes.
func (p *Process) Kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	if !p.exited {
		var ws unix.WaitStatus
		_, _ = unix.Wait4(p.cmd.Process.Pid, &ws, 0, nil)
		p.exited = true
	}
}

// Close releases the stdout pipe fd. Call after the caller has deregistered
// StdoutFd from its poller.
func (p *Process) Close() error {
	return p.stdoutR.Close()
}
