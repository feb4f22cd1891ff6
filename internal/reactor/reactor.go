// Package reactor is the single-threaded, readiness-driven HTTP/1.1 server
// of spec.md §4.D: one epoll-backed event loop accepts connections, reads
// requests, offloads CGI scripts without blocking on them, and writes
// responses, closing every connection once its response has been sent.
package reactor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/helouazizi/localserver/internal/config"
	"github.com/helouazizi/localserver/internal/metrics"
	"github.com/helouazizi/localserver/internal/poller"
)

// pollTimeout bounds how long Wait blocks between timeout sweeps, mirroring
// the original implementation's 1-second poll budget.
const pollTimeout = 1 * time.Second

// Reactor owns the poller and every piece of state keyed by the tokens it
// hands out: listeners, client connections, and CGI children in flight.
type Reactor struct {
	poll    poller.Poller
	cfg     *config.Config
	log     *zap.Logger
	metrics *metrics.Set

	listeners  map[uint64]*boundListener
	conns      map[uint64]*connection
	pendingCGI map[uint64]*pendingCGI
	cgiToConn  map[uint64]uint64

	nextToken uint64
}

// New constructs a Reactor ready for Bind. logger and metricsSet must not
// be nil; callers almost always want zap.NewProduction() and metrics.New().
func New(cfg *config.Config, log *zap.Logger, metricsSet *metrics.Set) (*Reactor, error) {
	p, err := poller.New(1024)
	if err != nil {
		return nil, fmt.Errorf("reactor: create poller: %w", err)
	}
	return &Reactor{
		poll:       p,
		cfg:        cfg,
		log:        log,
		metrics:    metricsSet,
		listeners:  make(map[uint64]*boundListener),
		conns:      make(map[uint64]*connection),
		pendingCGI: make(map[uint64]*pendingCGI),
		cgiToConn:  make(map[uint64]uint64),
	}, nil
}

// Bind opens one listener per configured server block. A server block that
// fails to bind is logged and skipped rather than aborting the others
// (spec.md §6); Bind only fails outright if nothing could be bound.
func (r *Reactor) Bind() error {
	for idx, sc := range r.cfg.Servers {
		ln, err := bindListener(sc.Host, sc.Port, idx)
		if err != nil {
			r.log.Error("bind failed",
				zap.Int("server_idx", idx), zap.String("host", sc.Host), zap.String("port", sc.Port), zap.Error(err))
			continue
		}
		token := r.allocToken()
		if err := r.poll.Add(ln.fd, token, poller.Readable); err != nil {
			ln.close()
			r.log.Error("register listener failed", zap.String("addr", ln.addr), zap.Error(err))
			continue
		}
		r.listeners[token] = ln
		r.log.Info("listening", zap.String("addr", ln.addr), zap.String("server_name", sc.ServerName))
	}
	if len(r.listeners) == 0 {
		return fmt.Errorf("reactor: no listeners could be bound")
	}
	return nil
}

// ListenerCount reports how many listeners actually bound, for the CLI's
// exit-code decision.
func (r *Reactor) ListenerCount() int { return len(r.listeners) }

// ListenerAddrs reports the bound address of every listener, in no
// particular order; used by tests that need to dial an ephemeral port and
// by anything else that wants to know where the reactor actually ended up
// listening.
func (r *Reactor) ListenerAddrs() []string {
	addrs := make([]string, 0, len(r.listeners))
	for _, ln := range r.listeners {
		addrs = append(addrs, ln.addr)
	}
	return addrs
}

// Run drives the event loop until ctx is cancelled.
func (r *Reactor) Run(ctx context.Context) error {
	r.log.Info("reactor started", zap.Int("listeners", len(r.listeners)))
	for {
		if err := ctx.Err(); err != nil {
			return r.shutdown()
		}

		events, err := r.poll.Wait(pollTimeout)
		if err != nil {
			r.log.Error("poll wait failed", zap.Error(err))
			continue
		}

		for _, ev := range events {
			switch {
			case r.listeners[ev.Token] != nil:
				r.acceptOn(ev.Token)
			case r.isCgiToken(ev.Token):
				r.handleCgiEvent(ev)
			default:
				r.handleClientEvent(ev)
			}
		}

		r.checkCgiProgress()
		r.checkCgiTimeouts()
		r.checkTimeouts()
	}
}

func (r *Reactor) isCgiToken(token uint64) bool {
	_, ok := r.cgiToConn[token]
	return ok
}

func (r *Reactor) allocToken() uint64 {
	r.nextToken++
	return r.nextToken
}

func (r *Reactor) shutdown() error {
	for _, ln := range r.listeners {
		ln.close()
	}
	for token, c := range r.conns {
		r.poll.Delete(c.fd)
		closeFd(c.fd)
		delete(r.conns, token)
	}
	for clientToken := range r.pendingCGI {
		r.removePendingCGI(clientToken)
	}
	return r.poll.Close()
}

func (r *Reactor) acceptOn(listenerToken uint64) {
	ln := r.listeners[listenerToken]
	serverIdx := ln.serverIdx
	err := ln.acceptAll(func(fd int) {
		token := r.allocToken()
		if err := r.poll.Add(fd, token, poller.Readable); err != nil {
			r.log.Warn("register connection failed", zap.Error(err))
			closeFd(fd)
			return
		}
		conn := newConnection(fd, serverIdx)
		r.conns[token] = conn
		r.metrics.ConnectionsAccepted.Inc()
		r.metrics.ConnectionsActive.Inc()
		r.log.Debug("accepted connection", zap.String("conn_id", conn.id.String()), zap.Int("server_idx", serverIdx))
	})
	if err != nil {
		r.log.Warn("accept failed", zap.Uint64("listener_token", listenerToken), zap.Error(err))
	}
}
