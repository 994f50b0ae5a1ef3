package utils

import (
	"crypto/md5"
	"fmt"
	"sort"
	"strings"
)

func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}

// FingerprintFiles derives a stable id from a set of (name, size) pairs.
// The pairs are sorted before hashing so the id does not depend on upload
// order.
func FingerprintFiles(names []string, sizes []int64) string {
	lines := make([]string, len(names))
	for i, name := range names {
		lines[i] = fmt.Sprintf("%s:%d", name, sizes[i])
	}
	sort.Strings(lines)
	return HashString(strings.Join(lines, "|"))
}
