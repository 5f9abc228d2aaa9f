package surface

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// linux/dma-buf.h
const (
	dmaBufIoctlSync = 0x40086200

	DmaBufSyncRead  = uint64(1 << 0)
	DmaBufSyncStart = uint64(0 << 2)
	DmaBufSyncEnd   = uint64(1 << 2)
)

// maxSyncAttempts bounds the EINTR/EAGAIN retries of one sync call.
const maxSyncAttempts = 4

type dmaBufSyncArg struct {
	flags uint64
}

// DmaBufSync issues DMA_BUF_IOCTL_SYNC, retrying a few times while the kernel
// asks to. A buffer that stays busy returns EAGAIN.
func DmaBufSync(fd uintptr, flags uint64) error {
	return retrySync(func() unix.Errno {
		arg := dmaBufSyncArg{flags: flags}
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, dmaBufIoctlSync, uintptr(unsafe.Pointer(&arg)))
		return errno
	})
}

func retrySync(ioctl func() unix.Errno) error {
	var errno unix.Errno
	for i := 0; i < maxSyncAttempts; i++ {
		errno = ioctl()
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return errno
		}
	}
	return errno
}
