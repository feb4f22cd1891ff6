package reactor

import "time"

// checkTimeouts closes any connection that hasn't made progress within the
// configured timeout, except ones waiting on a CGI child — those are
// governed by checkCgiTimeouts instead (spec.md §4.D).
func (r *Reactor) checkTimeouts() {
	timeout := time.Duration(r.cfg.TimeoutSeconds) * time.Second
	now := time.Now()

	stale := make([]uint64, 0)
	for token, conn := range r.conns {
		if conn.state == StateCgiPending {
			continue
		}
		if now.Sub(conn.lastActivity) > timeout {
			stale = append(stale, token)
		}
	}
	for _, token := range stale {
		r.closeConnection(token)
	}
}
