package transport

import (
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Listener is a non-blocking AF_UNIX stream listener with a backlog of one.
type Listener struct {
	fd   int
	addr string
}

// Listen binds addr. A leading '@' selects the abstract namespace. Bind
// failure wraps ErrAddressInUse when the name is taken.
func Listen(addr string) (*Listener, error) {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, errors.Wrap(err, "socket")
	}

	if err := unix.Bind(fd, &unix.SockaddrUnix{Name: addr}); err != nil {
		unix.Close(fd)
		if err == unix.EADDRINUSE {
			return nil, errors.Wrapf(ErrAddressInUse, "bind %s", printableAddr(addr))
		}
		return nil, errors.Wrapf(err, "bind %s", printableAddr(addr))
	}

	if err := unix.Listen(fd, 1); err != nil {
		unix.Close(fd)
		return nil, errors.Wrapf(err, "listen %s", printableAddr(addr))
	}

	return &Listener{fd: fd, addr: addr}, nil
}

// Fd returns the listening descriptor for readiness polling.
func (l *Listener) Fd() int {
	return l.fd
}

// Addr returns the bound name.
func (l *Listener) Addr() string {
	return l.addr
}

// Accept takes one pending connection. The returned channel is in blocking
// mode; callers only read from it after poll reports readiness.
func (l *Listener) Accept() (*Channel, error) {
	for {
		nfd, _, err := unix.Accept4(l.fd, unix.SOCK_CLOEXEC)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(err, "accept")
		}
		return NewChannel(nfd), nil
	}
}

// Close stops listening. Abstract names vanish with the socket.
func (l *Listener) Close() error {
	if l.fd < 0 {
		return nil
	}
	err := unix.Close(l.fd)
	l.fd = -1
	return err
}

func printableAddr(addr string) string {
	if strings.HasPrefix(addr, "@") {
		return "abstract:" + addr[1:]
	}
	return addr
}
