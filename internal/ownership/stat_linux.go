package ownership

import (
	"os"
	"strconv"
	"syscall"
)

// statOwnerIDs extracts the uid/gid of a path's underlying inode.
func statOwnerIDs(info os.FileInfo) (uid, gid string, ok bool) {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return "", "", false
	}
	return strconv.FormatUint(uint64(st.Uid), 10), strconv.FormatUint(uint64(st.Gid), 10), true
}
