package transport

import (
	"io"
	"os"
	"strconv"

	"github.com/babelcloud/vkshow/internal/vkcapture/protocol"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Channel is a connected stream socket that carries descriptors.
type Channel struct {
	fd  int
	buf [protocol.SurfaceMessageSize]byte
	oob []byte
}

// NewChannel takes ownership of a connected AF_UNIX stream socket.
func NewChannel(fd int) *Channel {
	return &Channel{
		fd:  fd,
		oob: make([]byte, unix.CmsgSpace(4*MaxHandles)),
	}
}

// Fd returns the socket descriptor for readiness polling.
func (c *Channel) Fd() int {
	return c.fd
}

// Receive performs exactly one message-sized recvmsg. A zero-length read is
// reported as io.EOF; descriptors that arrive with it are closed.
func (c *Channel) Receive() (Message, error) {
	var n, oobn, flags int
	var err error
	for {
		n, oobn, flags, _, err = unix.Recvmsg(c.fd, c.buf[:], c.oob, unix.MSG_CMSG_CLOEXEC)
		if err != unix.EINTR {
			break
		}
	}
	if err != nil {
		if isConnectionLost(err) {
			return Message{}, errors.Wrap(ErrConnectionLost, err.Error())
		}
		return Message{}, errors.Wrap(err, "recvmsg")
	}

	handles, err := parseRights(c.oob[:oobn])
	if err != nil {
		CloseHandles(handles)
		return Message{}, err
	}

	if n == 0 {
		CloseHandles(handles)
		return Message{}, io.EOF
	}

	data := make([]byte, n)
	copy(data, c.buf[:n])
	return Message{Data: data, Handles: handles, Truncated: flags&unix.MSG_CTRUNC != 0}, nil
}

// Send writes b without raising SIGPIPE.
func (c *Channel) Send(b []byte) error {
	for {
		_, err := unix.SendmsgN(c.fd, b, nil, nil, unix.MSG_NOSIGNAL)
		switch {
		case err == nil:
			return nil
		case err == unix.EINTR:
			continue
		case isConnectionLost(err):
			return errors.Wrap(ErrDisconnected, err.Error())
		default:
			return errors.Wrap(err, "sendmsg")
		}
	}
}

// Close closes the socket.
func (c *Channel) Close() error {
	if c.fd < 0 {
		return nil
	}
	err := unix.Close(c.fd)
	c.fd = -1
	return err
}

// parseRights wraps every descriptor in oob. On a malformed control message
// the descriptors parsed so far are returned with the error so the caller
// can close them.
func parseRights(oob []byte) ([]Handle, error) {
	var handles []Handle
	for len(oob) >= unix.CmsgLen(0) {
		hdr, data, rest, err := unix.ParseOneSocketControlMessage(oob)
		if err != nil {
			return handles, errors.Wrap(err, "parse control message")
		}
		oob = rest

		if hdr.Level != unix.SOL_SOCKET || hdr.Type != unix.SCM_RIGHTS {
			continue
		}
		fds, err := unix.ParseUnixRights(&unix.SocketControlMessage{Header: hdr, Data: data})
		if err != nil {
			return handles, errors.Wrap(err, "parse unix rights")
		}
		for _, fd := range fds {
			handles = append(handles, os.NewFile(uintptr(fd), "dmabuf:"+strconv.Itoa(fd)))
		}
	}
	return handles, nil
}

func isConnectionLost(err error) bool {
	return err == unix.ECONNRESET || err == unix.EPIPE || err == unix.ENOTCONN || err == unix.ECONNABORTED
}
