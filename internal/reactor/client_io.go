package reactor

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/helouazizi/localserver/internal/httpmsg"
	"github.com/helouazizi/localserver/internal/poller"
)

func (r *Reactor) handleClientEvent(ev poller.Event) {
	conn, ok := r.conns[ev.Token]
	if !ok {
		return
	}

	if conn.state == StateCgiPending {
		if ev.ReadClosed || ev.WriteClosed || ev.Error {
			r.closeConnection(ev.Token)
		}
		return
	}

	if ev.Readable {
		r.readFromClient(ev.Token)
		conn, ok = r.conns[ev.Token]
		if !ok {
			return
		}
	}
	if ev.Writable {
		r.writeToClient(ev.Token)
		conn, ok = r.conns[ev.Token]
		if !ok {
			return
		}
	}
	if ev.Error || ((ev.ReadClosed || ev.WriteClosed) && conn.state != StateWriteResponse) {
		r.closeConnection(ev.Token)
	}
}

func (r *Reactor) readFromClient(token uint64) {
	conn, ok := r.conns[token]
	if !ok {
		return
	}
	limit := r.cfg.EffectiveBodyLimit(conn.serverIdx)

	oversized := false
	shouldProcess := false

	result, err := drainFd(conn.fd, func(chunk []byte) {
		conn.readBuffer = append(conn.readBuffer, chunk...)
		conn.touch()
		r.metrics.BytesRead.Add(float64(len(chunk)))
	})
	if err != nil {
		r.log.Debug("client read error", zap.String("conn_id", conn.id.String()), zap.Error(err))
		r.closeConnection(token)
		return
	}
	if result == readClosed {
		r.closeConnection(token)
		return
	}

	if int64(len(conn.readBuffer)) > r.cfg.MaxServerSize {
		oversized = true
	} else if headerEnd := headerEndOf(conn.readBuffer); headerEnd >= 0 {
		if cl := contentLengthHeaderOf(conn.readBuffer[:headerEnd]); cl >= 0 && int64(cl) > limit {
			oversized = true
		} else if int64(len(conn.readBuffer)-headerEnd) > limit {
			oversized = true
		}
	}

	if !oversized && httpmsg.IsComplete(conn.readBuffer) {
		conn.requestDone = true
		shouldProcess = true
	}

	if oversized {
		r.sendError(token, 413)
		return
	}
	if shouldProcess {
		r.processRequest(token)
	}
}

func (r *Reactor) writeToClient(token uint64) {
	conn, ok := r.conns[token]
	if !ok {
		return
	}

	n, wouldBlock, err := writeFd(conn.fd, conn.writeBuffer[conn.bytesWritten:])
	conn.bytesWritten += n
	if n > 0 {
		conn.touch()
		r.metrics.BytesWritten.Add(float64(n))
	}
	if err != nil {
		r.closeConnection(token)
		return
	}
	if wouldBlock {
		return
	}
	if conn.bytesWritten >= len(conn.writeBuffer) {
		r.log.Debug("response sent",
			zap.String("conn_id", conn.id.String()),
			zap.String("bytes_written", humanize.Bytes(uint64(conn.bytesWritten))))
		r.closeConnection(token)
	}
}

func (r *Reactor) closeConnection(token uint64) {
	if _, pending := r.pendingCGI[token]; pending {
		r.removePendingCGI(token)
	}
	conn, ok := r.conns[token]
	if !ok {
		return
	}
	r.poll.Delete(conn.fd)
	closeFd(conn.fd)
	delete(r.conns, token)
	r.metrics.ConnectionsActive.Dec()
}

// headerEndOf returns the offset just past the blank line terminating the
// header block, or -1 if it hasn't arrived yet.
func headerEndOf(buf []byte) int {
	for i := 0; i+4 <= len(buf); i++ {
		if buf[i] == '\r' && buf[i+1] == '\n' && buf[i+2] == '\r' && buf[i+3] == '\n' {
			return i + 4
		}
	}
	return -1
}

// contentLengthHeaderOf scans raw header bytes for Content-Length without
// requiring the rest of the request to be parseable yet (used for the
// early oversized-body rejection while still reading).
func contentLengthHeaderOf(headerBytes []byte) int {
	for _, line := range bytes.Split(headerBytes, []byte("\r\n")) {
		name, value, ok := strings.Cut(string(line), ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "content-length") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err == nil && n >= 0 {
			return n
		}
	}
	return -1
}
