//go:build linux || darwin || freebsd

package transfer

import (
	"golang.org/x/sys/unix"
)

// freeBytes reports the space available to unprivileged users under dir.
func freeBytes(dir string) (int64, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(dir, &st); err != nil {
		return -1, err
	}
	return int64(st.Bavail) * int64(st.Bsize), nil
}

func checkReadable(path string) error {
	return unix.Access(path, unix.R_OK)
}
