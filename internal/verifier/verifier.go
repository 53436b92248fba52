// Package verifier re-hashes copied files and compares them against the
// digests recorded during transfer.
package verifier

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"

	"github.com/joshgermon/bksd/internal/bufpool"
	"github.com/joshgermon/bksd/internal/model"
)

// Result summarises a successful verification pass.
type Result struct {
	FilesVerified uint64
	BytesVerified uint64
}

// MismatchReason classifies why a file failed verification.
type MismatchReason string

const (
	ReasonHashMismatch         MismatchReason = "hash mismatch"
	ReasonMissingInDestination MismatchReason = "missing in destination"
)

// Mismatch describes one file that failed verification.
type Mismatch struct {
	RelativePath string
	Reason       MismatchReason
}

const maxReportedMismatches = 10

// VerifyFromHashes is the fast verification path: it only reads
// destination files, since source files were already hashed during copy.
// For each recorded hash, it computes destinationRoot+relative_path,
// hashes the file with BLAKE3 using a 128 KiB buffer, and compares. On any
// mismatch it returns an error summarising the count and first 10 entries;
// otherwise a Result.
func VerifyFromHashes(destinationRoot string, hashes []model.FileHash) (Result, error) {
	if len(hashes) == 0 {
		return Result{}, nil
	}

	var mismatches []Mismatch
	var bytesVerified uint64

	for _, fh := range hashes {
		destPath := filepath.Join(destinationRoot, fh.RelativePath)

		if _, err := os.Stat(destPath); err != nil {
			mismatches = append(mismatches, Mismatch{RelativePath: fh.RelativePath, Reason: ReasonMissingInDestination})
			continue
		}

		digest, err := hashFile(destPath)
		if err != nil {
			mismatches = append(mismatches, Mismatch{RelativePath: fh.RelativePath, Reason: ReasonHashMismatch})
			continue
		}
		if digest != fh.Digest {
			mismatches = append(mismatches, Mismatch{RelativePath: fh.RelativePath, Reason: ReasonHashMismatch})
			continue
		}
		bytesVerified += uint64(fh.Size)
	}

	if len(mismatches) > 0 {
		return Result{}, fmt.Errorf("%s", formatMismatches(mismatches))
	}
	return Result{FilesVerified: uint64(len(hashes)), BytesVerified: bytesVerified}, nil
}

func hashFile(path string) ([32]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, err
	}
	defer f.Close()

	hasher := blake3.New()
	r := bufio.NewReaderSize(f, bufpool.ChunkSize)
	buf := bufpool.Get()
	defer bufpool.Put(buf)

	for {
		n, readErr := r.Read(buf)
		if n > 0 {
			hasher.Write(buf[:n])
		}
		if readErr != nil {
			if readErr != io.EOF {
				return [32]byte{}, readErr
			}
			break
		}
	}

	var out [32]byte
	sum := hasher.Sum(nil)
	copy(out[:], sum)
	return out, nil
}

func formatMismatches(mismatches []Mismatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "verification failed: %d file(s) did not match", len(mismatches))
	limit := len(mismatches)
	if limit > maxReportedMismatches {
		limit = maxReportedMismatches
	}
	for _, m := range mismatches[:limit] {
		fmt.Fprintf(&b, "\n  %s: %s", m.RelativePath, m.Reason)
	}
	if len(mismatches) > limit {
		fmt.Fprintf(&b, "\n  ... and %d more", len(mismatches)-limit)
	}
	return b.String()
}

// VerifyTransfer is the slow path: it walks the source tree, hashes each
// source file, and re-hashes the destination file at the same relative
// path, for callers that cannot supply pre-computed hashes from the copy
// itself. Files present only in the destination are not reported. It is not wired into
// the orchestrator; engines that support inline hashing should prefer
// VerifyFromHashes.
func VerifyTransfer(source, destination string) (Result, error) {
	var hashes []model.FileHash
	err := filepath.Walk(source, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return err
		}
		rel, err := filepath.Rel(source, path)
		if err != nil {
			return err
		}
		digest, err := hashFile(path)
		if err != nil {
			return err
		}
		hashes = append(hashes, model.FileHash{RelativePath: rel, Digest: digest, Size: info.Size()})
		return nil
	})
	if err != nil {
		return Result{}, fmt.Errorf("verifier: scan source: %w", err)
	}
	return VerifyFromHashes(destination, hashes)
}
