package cache

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/xxh3"
)

// Fingerprint derives the cache key for one analysis result. The file's
// modification time is folded in, so an edited file can never return a
// stale hit: the changed mtime produces a different key.
func Fingerprint(filePath string, mtime time.Time, analysisKind string, extras map[string]string) string {
	var sb strings.Builder
	sb.WriteString(filePath)
	sb.WriteByte('|')
	sb.WriteString(fmt.Sprintf("%d", mtime.UnixNano()))
	sb.WriteByte('|')
	sb.WriteString(analysisKind)

	if len(extras) > 0 {
		keys := make([]string, 0, len(extras))
		for k := range extras {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteByte('|')
			sb.WriteString(k)
			sb.WriteByte('=')
			sb.WriteString(extras[k])
		}
	}

	return fmt.Sprintf("%016x", xxh3.HashString(sb.String()))
}
