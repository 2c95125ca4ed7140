package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
)

// Fingerprint hashes the data directory's per-file name, size and
// modification time. Identical fingerprints mean the prior build may be
// reused; a missing directory fingerprints as empty rather than failing.
func Fingerprint(dir string) (string, error) {
	h := sha256.New()

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return hex.EncodeToString(h.Sum(nil)), nil
		}
		return "", fmt.Errorf("read data dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", entry.Name(), err)
		}
		fmt.Fprintf(h, "%s|%d|%d\n", entry.Name(), info.Size(), info.ModTime().UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
