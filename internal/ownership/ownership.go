// Package ownership determines who backup files should belong to, so a
// daemon started with sudo doesn't leave a backup root owned by root.
package ownership

import (
	"os"
	"os/user"
)

// Owner is a resolved user:group pair suitable for chown or rsync's
// --chown option.
type Owner struct {
	User  string
	Group string
}

// AsChownArg formats the owner as "user:group".
func (o Owner) AsChownArg() string {
	return o.User + ":" + o.Group
}

// Resolve determines the owner backup files should carry. Detection
// order: the SUDO_USER environment variable (the user who ran "sudo
// bksd"), then the owner of backupDir itself. Returns false if neither
// resolves, in which case the caller leaves files owned by whatever
// process uid created them.
func Resolve(backupDir string) (Owner, bool) {
	if owner, ok := fromSudoUser(); ok {
		return owner, true
	}
	return fromPath(backupDir)
}

func fromSudoUser() (Owner, bool) {
	name := os.Getenv("SUDO_USER")
	if name == "" {
		return Owner{}, false
	}
	u, err := user.Lookup(name)
	if err != nil {
		return Owner{}, false
	}
	grp, err := user.LookupGroupId(u.Gid)
	if err != nil {
		return Owner{}, false
	}
	return Owner{User: name, Group: grp.Name}, true
}

func fromPath(path string) (Owner, bool) {
	info, err := os.Stat(path)
	if err != nil {
		return Owner{}, false
	}
	uid, gid, ok := statOwnerIDs(info)
	if !ok {
		return Owner{}, false
	}
	u, err := user.LookupId(uid)
	if err != nil {
		return Owner{}, false
	}
	grp, err := user.LookupGroupId(gid)
	if err != nil {
		return Owner{}, false
	}
	return Owner{User: u.Username, Group: grp.Name}, true
}
