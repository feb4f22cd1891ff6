package reactor

import (
	"context"
	"fmt"
	"net"
	"syscall"

	"golang.org/x/sys/unix"
)

// boundListener is a listening socket the reactor drives through its own
// poller rather than through net.Listener.Accept, so that accepting a
// connection never blocks the single event loop goroutine. We still go
// through net.ListenConfig to get the OS to do the usual bind/listen
// dance (and SO_REUSEADDR, the way the teacher's listeners set
// SO_REUSEPORT) and only reach for the raw fd afterwards.
type boundListener struct {
	ln        *net.TCPListener
	fd        int
	serverIdx int
	addr      string
}

func bindListener(host, port string, serverIdx int) (*boundListener, error) {
	lc := net.ListenConfig{Control: setReuseAddr}
	ln, err := lc.Listen(context.Background(), "tcp", net.JoinHostPort(host, port))
	if err != nil {
		return nil, err
	}
	tcpLn, ok := ln.(*net.TCPListener)
	if !ok {
		ln.Close()
		return nil, fmt.Errorf("listener for %s is not a TCP listener", ln.Addr())
	}

	sc, err := tcpLn.SyscallConn()
	if err != nil {
		tcpLn.Close()
		return nil, err
	}
	var fd int
	var dupErr error
	if err := sc.Control(func(descriptor uintptr) {
		fd, dupErr = unix.Dup(int(descriptor))
	}); err != nil {
		tcpLn.Close()
		return nil, err
	}
	if dupErr != nil {
		tcpLn.Close()
		return nil, dupErr
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		tcpLn.Close()
		return nil, err
	}

	return &boundListener{ln: tcpLn, fd: fd, serverIdx: serverIdx, addr: ln.Addr().String()}, nil
}

func setReuseAddr(_, _ string, conn syscall.RawConn) error {
	var sockErr error
	err := conn.Control(func(descriptor uintptr) {
		sockErr = unix.SetsockoptInt(int(descriptor), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// acceptAll accepts every pending connection on the listener without
// blocking, stopping at the first EAGAIN, and calls onAccept for each.
func (b *boundListener) acceptAll(onAccept func(fd int)) error {
	for {
		connFd, _, err := unix.Accept4(b.fd, unix.SOCK_NONBLOCK)
		switch {
		case err == nil:
			onAccept(connFd)
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return nil
		case err == unix.EINTR:
			continue
		default:
			return err
		}
	}
}

func (b *boundListener) close() {
	unix.Close(b.fd)
	b.ln.Close()
}
