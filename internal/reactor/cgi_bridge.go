package reactor

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/helouazizi/localserver/internal/cgi"
	"github.com/helouazizi/localserver/internal/config"
	"github.com/helouazizi/localserver/internal/httpmsg"
	"github.com/helouazizi/localserver/internal/poller"
)

// pendingCGI tracks one CGI child whose stdout the reactor is draining
// through the poller under a token distinct from its client connection's.
type pendingCGI struct {
	proc      *cgi.Process
	ioToken   uint64
	startedAt time.Time
}

// startCGI offloads a matched CGI route to a child process: build its
// RFC 3875 environment, spawn it, and register its stdout with the poller
// so the event loop can drain it without blocking.
func (r *Reactor) startCGI(token uint64, route *config.RouteConfig, req *httpmsg.Request, fullPath string) {
	if _, err := os.Stat(fullPath); err != nil {
		r.sendError(token, 404)
		return
	}
	scriptPath, err := filepath.Abs(fullPath)
	if err != nil {
		scriptPath = fullPath
	}

	env := cgi.BuildEnv(cgi.EnvRequest{
		Method:        req.Method,
		ScriptPath:    scriptPath,
		PathInfo:      scriptPath,
		QueryString:   req.Query,
		ContentType:   req.Headers["content-type"],
		ContentLength: req.Headers["content-length"],
		BodyLen:       len(req.Body),
		Headers:       req.Headers,
	})

	proc, err := cgi.Spawn(scriptPath, route.CGIInterpreter, req.Body, append(os.Environ(), env...))
	if err != nil {
		r.log.Warn("cgi spawn failed", zap.String("script", scriptPath), zap.Error(err))
		r.sendError(token, 500)
		return
	}

	ioToken := r.allocToken()
	if err := r.poll.Add(proc.StdoutFd, ioToken, poller.Readable); err != nil {
		proc.Kill()
		proc.Close()
		r.sendError(token, 500)
		return
	}

	r.pendingCGI[token] = &pendingCGI{proc: proc, ioToken: ioToken, startedAt: time.Now()}
	r.cgiToConn[ioToken] = token

	if conn, ok := r.conns[token]; ok {
		conn.state = StateCgiPending
		conn.touch()
	}
	r.metrics.CGISpawned.Inc()
}

func (r *Reactor) handleCgiEvent(ev poller.Event) {
	clientToken, ok := r.cgiToConn[ev.Token]
	if !ok {
		return
	}
	if ev.Readable || ev.ReadClosed {
		r.pollCGI(clientToken)
	}
}

// pollCGI drains whatever is currently buffered on a CGI child's stdout
// and, once the child has exited or its stdout has reached end of file,
// turns its collected output into the connection's response.
func (r *Reactor) pollCGI(clientToken uint64) {
	pending, ok := r.pendingCGI[clientToken]
	if !ok {
		return
	}

	eof, err := pending.proc.Drain()
	if err != nil {
		r.log.Warn("cgi stdout read failed", zap.Error(err))
		r.removePendingCGI(clientToken)
		r.sendError(clientToken, 500)
		return
	}
	if conn, ok := r.conns[clientToken]; ok {
		conn.touch()
	}

	exited, waitErr := pending.proc.TryWait()
	if waitErr != nil {
		r.log.Warn("cgi wait failed", zap.Error(waitErr))
	}

	if !exited && !eof {
		return
	}

	output := pending.proc.Output
	r.removePendingCGI(clientToken)
	if _, ok := r.conns[clientToken]; !ok {
		return
	}
	r.finalizeResponse(clientToken, cgi.BuildResponse(output))
}

// checkCgiProgress re-polls every CGI child still in flight; a script can
// finish writing and exit between epoll notifications, so this backstops
// the event-driven path the same way the original implementation's
// end-of-loop sweep does.
func (r *Reactor) checkCgiProgress() {
	tokens := make([]uint64, 0, len(r.pendingCGI))
	for t := range r.pendingCGI {
		tokens = append(tokens, t)
	}
	for _, t := range tokens {
		r.pollCGI(t)
	}
}

// checkCgiTimeouts kills and reaps any CGI child that has run longer than
// the configured timeout, answering its connection with 504.
func (r *Reactor) checkCgiTimeouts() {
	timeout := time.Duration(r.cfg.TimeoutSeconds) * time.Second
	now := time.Now()

	timedOut := make([]uint64, 0)
	for clientToken, pending := range r.pendingCGI {
		if now.Sub(pending.startedAt) > timeout {
			timedOut = append(timedOut, clientToken)
		}
	}

	for _, clientToken := range timedOut {
		r.metrics.CGITimedOut.Inc()
		r.removePendingCGI(clientToken)
		if _, ok := r.conns[clientToken]; ok {
			r.sendError(clientToken, 504)
		}
	}
}

func (r *Reactor) removePendingCGI(clientToken uint64) {
	pending, ok := r.pendingCGI[clientToken]
	if !ok {
		return
	}
	delete(r.pendingCGI, clientToken)
	delete(r.cgiToConn, pending.ioToken)

	r.poll.Delete(pending.proc.StdoutFd)
	if exited, _ := pending.proc.TryWait(); !exited {
		pending.proc.Kill()
	}
	pending.proc.Close()
}
