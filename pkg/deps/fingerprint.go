package deps

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Fingerprint derives a stable content hash from a scan result and the
// configured scopes. Two refreshes over an unchanged workspace and identity
// set produce the same fingerprint, so their built graphs share a cache key.
func Fingerprint(repos []LocalRepository, scopes []string) string {
	lines := make([]string, 0, len(repos)+len(scopes))
	for _, r := range repos {
		lines = append(lines, fmt.Sprintf("repo\x00%s\x00%s\x00%s", r.Path, r.ManifestName, r.ManifestVersion))
	}
	for _, s := range scopes {
		lines = append(lines, "scope\x00"+s)
	}
	sort.Strings(lines)

	h := sha256.New()
	for _, line := range lines {
		h.Write([]byte(line))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
