// Package native implements the native copy transfer engine: a two-phase
// directory replication with inline BLAKE3 hashing so verification only
// needs to re-read the destination.
package native

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strconv"
	"syscall"
	"time"

	"github.com/karrick/godirwalk"
	"github.com/zeebo/blake3"

	"github.com/joshgermon/bksd/internal/bufpool"
	"github.com/joshgermon/bksd/internal/constants"
	"github.com/joshgermon/bksd/internal/model"
)

// Engine is the native copy transfer engine.
type Engine struct {
	// SyncFiles controls whether each destination file is fsync'd before
	// its metadata is applied. Safer but slower; on by default.
	SyncFiles bool
}

// New creates a native engine with fsync enabled.
func New() *Engine {
	return &Engine{SyncFiles: true}
}

type fileInfo struct {
	path string
	size int64
}

// Transfer implements interfaces.TransferEngine.
func (e *Engine) Transfer(ctx context.Context, req model.TransferRequest, sink chan<- model.TransferStatus) (model.TransferResult, error) {
	if _, err := os.Stat(req.Destination); err == nil {
		msg := fmt.Sprintf("destination already exists: %s", req.Destination)
		send(ctx, sink, model.Failed("%s", msg))
		return model.TransferResult{}, errors.New(msg)
	}
	if err := os.MkdirAll(req.Destination, 0o755); err != nil {
		msg := fmt.Sprintf("failed to create destination directory: %v", err)
		send(ctx, sink, model.Failed("%s", msg))
		return model.TransferResult{}, errors.New(msg)
	}

	start := time.Now()

	files, dirs, totalBytes, err := scan(req.Source)
	if err != nil {
		msg := fmt.Sprintf("failed to scan source directory: %v", err)
		send(ctx, sink, model.Failed("%s", msg))
		return model.TransferResult{}, errors.New(msg)
	}

	uid, gid, hasOwner := resolveOwner(req.OwnerUser, req.OwnerGroup)

	if err := createDirectoryStructure(req.Source, req.Destination, dirs, uid, gid, hasOwner); err != nil {
		msg := fmt.Sprintf("failed to create directory structure: %v", err)
		send(ctx, sink, model.Failed("%s", msg))
		return model.TransferResult{}, errors.New(msg)
	}

	bytesCopied, hashes, err := copyFiles(ctx, req.Source, req.Destination, files, totalBytes, e.SyncFiles, uid, gid, hasOwner, sink)
	if err != nil {
		send(ctx, sink, model.Failed("%s", err.Error()))
		return model.TransferResult{}, err
	}

	return model.TransferResult{
		TotalBytes:   bytesCopied,
		DurationSecs: time.Since(start).Seconds(),
		FileHashes:   hashes,
	}, nil
}

func send(ctx context.Context, sink chan<- model.TransferStatus, st model.TransferStatus) {
	select {
	case sink <- st:
	case <-ctx.Done():
	}
}

// scan walks source with symlink-safe metadata reads, collecting regular
// files with size and directories in creation order (parents before
// children). Symlinks and special files are skipped. A device-removal
// error aborts the scan entirely.
func scan(source string) (files []fileInfo, dirs []string, totalBytes int64, err error) {
	walkErr := godirwalk.Walk(source, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			if path == source {
				return nil
			}
			if de.IsDir() {
				dirs = append(dirs, path)
				return nil
			}
			if !de.IsRegular() {
				return nil // skip symlinks and special files
			}
			info, statErr := os.Lstat(path)
			if statErr != nil {
				if isDeviceRemoved(statErr) {
					return statErr
				}
				return nil // skip unreadable entry
			}
			files = append(files, fileInfo{path: path, size: info.Size()})
			totalBytes += info.Size()
			return nil
		},
		ErrorCallback: func(path string, walkErr error) godirwalk.ErrorAction {
			if isDeviceRemoved(walkErr) {
				return godirwalk.Halt
			}
			return godirwalk.SkipNode
		},
	})
	if walkErr != nil {
		return nil, nil, 0, walkErr
	}

	// Parents-before-children ordering falls out of lexical path sort
	// since Unsorted skips godirwalk's own sort step for performance.
	sort.Strings(dirs)
	return files, dirs, totalBytes, nil
}

func createDirectoryStructure(source, destination string, dirs []string, uid, gid int, hasOwner bool) error {
	for _, dir := range dirs {
		rel, err := filepath.Rel(source, dir)
		if err != nil {
			return err
		}
		destDir := filepath.Join(destination, rel)

		info, err := os.Stat(dir)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(destDir, info.Mode().Perm()); err != nil {
			return err
		}
		if err := os.Chmod(destDir, info.Mode().Perm()); err != nil {
			return err
		}
		if hasOwner {
			_ = os.Chown(destDir, uid, gid) // error ignored: neither logged nor fatal
		}
	}
	return nil
}

func copyFiles(ctx context.Context, source, destination string, files []fileInfo, totalBytes int64, syncFiles bool, uid, gid int, hasOwner bool, sink chan<- model.TransferStatus) (int64, []model.FileHash, error) {
	var (
		bytesCopied       int64
		lastProgressBytes int64
		hashes            []model.FileHash
		errs              []string
		errCount          int
	)

	for _, fi := range files {
		rel, err := filepath.Rel(source, fi.path)
		if err != nil {
			return 0, nil, err
		}
		destPath := filepath.Join(destination, rel)

		fileBytes, digest, err := copySingleFile(fi.path, destPath, syncFiles, uid, gid, hasOwner)
		if err != nil {
			if isDeviceRemoved(err) {
				return 0, nil, fmt.Errorf("Device removed during transfer at file %s: %w", rel, err)
			}
			errCount++
			if len(errs) < constants.MaxReportedErrors {
				errs = append(errs, fmt.Sprintf("%s: %v", rel, err))
			} else if len(errs) == constants.MaxReportedErrors {
				errs = append(errs, "...")
			}
			continue
		}

		bytesCopied += fileBytes
		hashes = append(hashes, model.FileHash{RelativePath: rel, Digest: digest, Size: fileBytes})

		if bytesCopied-lastProgressBytes >= constants.ProgressLogThreshold || bytesCopied == totalBytes {
			send(ctx, sink, model.InProgress(totalBytes, bytesCopied, rel, nil))
			lastProgressBytes = bytesCopied
		}

		select {
		case <-ctx.Done():
			return 0, nil, ctx.Err()
		default:
		}
	}

	if errCount > 0 {
		return 0, nil, fmt.Errorf("transfer completed with %d error(s): %v", errCount, errs)
	}
	return bytesCopied, hashes, nil
}

func copySingleFile(source, dest string, syncFile bool, uid, gid int, hasOwner bool) (int64, [32]byte, error) {
	var digest [32]byte

	info, err := os.Lstat(source)
	if err != nil {
		return 0, digest, err
	}

	in, err := os.Open(source)
	if err != nil {
		return 0, digest, err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return 0, digest, err
	}
	defer out.Close()

	hasher := blake3.New()
	buf := bufpool.Get()
	defer bufpool.Put(buf)

	var written int64
	for {
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				return 0, digest, writeErr
			}
			hasher.Write(buf[:n])
			written += int64(n)
		}
		if readErr != nil {
			if readErr != io.EOF {
				return 0, digest, readErr
			}
			break
		}
	}

	if syncFile {
		if err := out.Sync(); err != nil {
			return 0, digest, err
		}
	}
	if err := out.Close(); err != nil {
		return 0, digest, err
	}

	_ = os.Chmod(dest, info.Mode().Perm())
	_ = os.Chtimes(dest, time.Now(), info.ModTime())
	if hasOwner {
		_ = os.Chown(dest, uid, gid)
	}

	sum := hasher.Sum(nil)
	copy(digest[:], sum)
	return written, digest, nil
}

func resolveOwner(userName, groupName string) (uid, gid int, ok bool) {
	if userName == "" || groupName == "" {
		return 0, 0, false
	}
	u, err := user.Lookup(userName)
	if err != nil {
		return 0, 0, false
	}
	g, err := user.LookupGroup(groupName)
	if err != nil {
		return 0, 0, false
	}
	uidN, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, false
	}
	gidN, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, 0, false
	}
	return uidN, gidN, true
}

// isDeviceRemoved classifies an error the way the scan/copy loop must:
// error-kind not-found/broken-pipe/connection-reset/connection-aborted/
// not-connected, or an underlying errno in
// {EIO, ENODEV, ENXIO, ENOMEDIUM, EMEDIUMTYPE}.
func isDeviceRemoved(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrNotExist) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.ENOTCONN) {
		return true
	}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EIO, syscall.ENODEV, syscall.ENXIO, syscall.ENOMEDIUM, syscall.EMEDIUMTYPE:
			return true
		}
	}
	return false
}
