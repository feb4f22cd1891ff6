package reactor

import (
	"time"

	"github.com/google/uuid"
)

// ConnectionState is the three-state machine of spec.md §4.B: a connection
// reads a request, optionally waits on a CGI child, then writes a response
// and closes. There is no keep-alive reuse (spec.md §9 Open Question 4).
type ConnectionState int

const (
	StateReadRequest ConnectionState = iota
	StateCgiPending
	StateWriteResponse
)

func (s ConnectionState) String() string {
	switch s {
	case StateReadRequest:
		return "read_request"
	case StateCgiPending:
		return "cgi_pending"
	case StateWriteResponse:
		return "write_response"
	default:
		return "unknown"
	}
}

// connection holds per-client state. The reactor owns exactly one of these
// per accepted socket and never hands its fd to anything that would block
// on it (see fdio.go).
type connection struct {
	id           uuid.UUID
	fd           int
	state        ConnectionState
	readBuffer   []byte
	writeBuffer  []byte
	bytesWritten int
	lastActivity time.Time
	serverIdx    int
	requestDone  bool
}

func newConnection(fd, serverIdx int) *connection {
	return &connection{
		id:           uuid.New(),
		fd:           fd,
		state:        StateReadRequest,
		readBuffer:   make([]byte, 0, 8192),
		lastActivity: time.Now(),
		serverIdx:    serverIdx,
	}
}

func (c *connection) touch() {
	c.lastActivity = time.Now()
}
