package reactor

import "golang.org/x/sys/unix"

func closeFd(fd int) {
	_ = unix.Close(fd)
}

// readResult distinguishes the three outcomes a non-blocking socket read
// can have, so callers don't have to repeat the EAGAIN/EINTR dance.
type readResult int

const (
	readMore readResult = iota // got some bytes, keep looping
	readWouldBlock
	readClosed
	readError
)

// drainFd reads everything currently available on fd, calling onRead for
// each chunk, until the socket would block, the peer closed the
// connection, or a real error occurs.
func drainFd(fd int, onRead func(chunk []byte)) (readResult, error) {
	buf := make([]byte, 4096)
	for {
		n, err := unix.Read(fd, buf)
		switch {
		case err == nil && n == 0:
			return readClosed, nil
		case err == nil:
			onRead(buf[:n])
			continue
		case err == unix.EAGAIN || err == unix.EWOULDBLOCK:
			return readWouldBlock, nil
		case err == unix.EINTR:
			continue
		default:
			return readError, err
		}
	}
}

// writeFd writes as much of data as the socket will currently accept,
// returning the number of bytes written and whether the socket would now
// block (meaning the caller should wait for the next writable event).
func writeFd(fd int, data []byte) (written int, wouldBlock bool, err error) {
	for written < len(data) {
		n, werr := unix.Write(fd, data[written:])
		switch {
		case werr == nil:
			written += n
		case werr == unix.EAGAIN || werr == unix.EWOULDBLOCK:
			return written, true, nil
		case werr == unix.EINTR:
			continue
		default:
			return written, false, werr
		}
	}
	return written, false, nil
}
