// Package rsync implements the external-process transfer engine, which
// delegates to the rsync binary and parses its progress output instead of
// copying bytes itself.
package rsync

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joshgermon/bksd/internal/model"
)

// Engine delegates transfer to an external rsync process. It does not
// expose per-file hashes, so the orchestrator skips hash verification for
// jobs run on this engine. rsync is run without --checksum.
type Engine struct {
	// Binary is the rsync executable to invoke; defaults to "rsync" on
	// PATH.
	Binary string
}

// New creates an rsync engine using the rsync binary on PATH.
func New() *Engine {
	return &Engine{Binary: "rsync"}
}

var progressRe = regexp.MustCompile(`^\s*([\d,]+)\s+(\d+)%`)

// Transfer runs rsync in archive mode with machine-readable progress
// reporting and non-incremental recursion, normalising permissions to
// user-rw/group-r/other-r and applying ownership via --chown when
// resolved.
func (e *Engine) Transfer(ctx context.Context, req model.TransferRequest, sink chan<- model.TransferStatus) (model.TransferResult, error) {
	args := []string{
		"--archive",
		"--chmod=u=rw,g=r,o=r",
		"--info=progress2",
		"--no-inc-recursive",
		strings.TrimRight(req.Source, "/") + "/",
		req.Destination,
	}
	if req.OwnerUser != "" && req.OwnerGroup != "" {
		args = append(args, fmt.Sprintf("--chown=%s:%s", req.OwnerUser, req.OwnerGroup))
	}

	binary := e.Binary
	if binary == "" {
		binary = "rsync"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		send(ctx, sink, model.Failed("rsync stdout pipe: %v", err))
		return model.TransferResult{}, fmt.Errorf("rsync: stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	start := time.Now()
	if err := cmd.Start(); err != nil {
		msg := fmt.Sprintf("failed to start rsync: %v", err)
		send(ctx, sink, model.Failed("%s", msg))
		return model.TransferResult{}, fmt.Errorf("rsync: %s", msg)
	}

	var lastBytes int64
	scanLines(stdout, func(line string) {
		m := progressRe.FindStringSubmatch(line)
		if m == nil {
			return
		}
		bytes, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
		if err != nil {
			return
		}
		pct, err := strconv.Atoi(m[2])
		if err != nil {
			return
		}
		lastBytes = bytes
		send(ctx, sink, model.TransferStatus{
			Kind:        model.KindInProgress,
			TotalBytes:  bytes,
			BytesCopied: bytes,
			Percentage:  pct,
		})
	})

	waitErr := cmd.Wait()
	if waitErr != nil {
		msg := fmt.Sprintf("rsync exited with error: %v", waitErr)
		send(ctx, sink, model.Failed("%s", msg))
		return model.TransferResult{}, fmt.Errorf("rsync: %s", msg)
	}

	return model.TransferResult{
		TotalBytes:   lastBytes,
		DurationSecs: time.Since(start).Seconds(),
		FileHashes:   nil,
	}, nil
}

func send(ctx context.Context, sink chan<- model.TransferStatus, st model.TransferStatus) {
	select {
	case sink <- st:
	case <-ctx.Done():
	}
}

// scanLines splits r byte-by-byte on CR or LF, matching rsync's
// carriage-return-driven progress redraws rather than line-buffering on
// newline alone.
func scanLines(r io.Reader, onLine func(string)) {
	reader := bufio.NewReader(r)
	var line strings.Builder
	for {
		b, err := reader.ReadByte()
		if err != nil {
			if line.Len() > 0 {
				onLine(line.String())
			}
			return
		}
		if b == '\r' || b == '\n' {
			if line.Len() > 0 {
				onLine(line.String())
				line.Reset()
			}
			continue
		}
		line.WriteByte(b)
	}
}
