package fs

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// FinalizeBucket compresses a closed bucket file with zstd, writes the
// SHA-256 of the compressed bytes to a sibling in sha256sum format, and
// removes the original. Both artifacts are written under temporary names
// and renamed into place so a crash never leaves a partial .zst or .sha256
// visible. Finalizing an already finalized bucket is a no-op.
func FinalizeBucket(path string) error {
	zstPath := path + ".zst"
	shaPath := zstPath + ".sha256"

	if fileExists(zstPath) && fileExists(shaPath) {
		// A crash between checksum and cleanup leaves the source behind.
		if fileExists(path) {
			return os.Remove(path)
		}
		return nil
	}

	if err := compressFile(path, zstPath); err != nil {
		return fmt.Errorf("compress %s: %w", path, err)
	}
	if err := writeChecksum(zstPath, shaPath); err != nil {
		return fmt.Errorf("checksum %s: %w", zstPath, err)
	}
	return os.Remove(path)
}

// VerifyBucket recomputes the SHA-256 of a compressed bucket and compares
// it against the recorded sibling checksum.
func VerifyBucket(zstPath string) error {
	want, err := readChecksum(zstPath + ".sha256")
	if err != nil {
		return err
	}

	got, err := hashFile(zstPath)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("checksum mismatch for %s: got %s, want %s", zstPath, got, want)
	}
	return nil
}

// UncompressedBuckets returns the plain bucket files under root, oldest
// first. The zero-padded path layout makes lexical walk order
// chronological.
func UncompressedBuckets(root string) ([]string, error) {
	return walkSuffixes(root, suffixText, suffixBinary)
}

// CompressedBuckets returns the finalized .zst archives under root, oldest
// first.
func CompressedBuckets(root string) ([]string, error) {
	return walkSuffixes(root, ".zst")
}

func walkSuffixes(root string, suffixes ...string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == root {
				return filepath.SkipAll
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, suffix := range suffixes {
			if strings.HasSuffix(path, suffix) {
				out = append(out, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func compressFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	ok := false
	defer func() {
		if !ok {
			out.Close()
			os.Remove(tmp)
		}
	}()

	enc, err := zstd.NewWriter(out, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return err
	}
	if _, err := io.Copy(enc, in); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	if err := out.Sync(); err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	ok = true
	return os.Rename(tmp, dst)
}

func writeChecksum(zstPath, shaPath string) error {
	sum, err := hashFile(zstPath)
	if err != nil {
		return err
	}

	// sha256sum format, so the archive can be checked with standard tools.
	line := fmt.Sprintf("%s  %s\n", sum, filepath.Base(zstPath))

	tmp := shaPath + ".tmp"
	if err := os.WriteFile(tmp, []byte(line), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, shaPath)
}

func readChecksum(shaPath string) (string, error) {
	f, err := os.Open(shaPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "", fmt.Errorf("empty checksum file %s", shaPath)
	}
	fields := strings.Fields(scanner.Text())
	if len(fields) < 1 || len(fields[0]) != sha256.Size*2 {
		return "", fmt.Errorf("malformed checksum file %s", shaPath)
	}
	return fields[0], nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
