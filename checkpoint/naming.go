package checkpoint

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const pointerKey = "metastore-current"

// snapshotPrefix names a full-backup blob. A uuid suffix (rather than a
// bare timestamp) makes the name collision-resistant when two processes
// race to take a checkpoint at the same wall-clock millisecond, per the
// domain-stack binding for google/uuid in this package.
func snapshotPrefix(millis int64) string {
	return fmt.Sprintf("metastore-%d-%s", millis, uuid.NewString())
}

func logsPrefix(snapshot string) string {
	return fmt.Sprintf("%s-logs/", snapshot)
}

func logKey(snapshot string, seq uint64) string {
	return fmt.Sprintf("%s-logs/%020d.flex", snapshot, seq)
}

var logSeqPattern = regexp.MustCompile(`/(\d+)\.flex$`)

// logSeqOf extracts the ordering sequence embedded in a log key, so
// recovery can replay log files "in sequence-number order" (spec.md
// §4.7) regardless of the order List returns them in.
func logSeqOf(key string) (uint64, bool) {
	m := logSeqPattern.FindStringSubmatch(key)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseUint(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// snapshotMillis extracts the timestamp component of a `metastore-<ts>-<uuid>`
// name, used to order candidate snapshots and to garbage-collect stale ones.
func snapshotMillis(snapshot string) (int64, bool) {
	rest := strings.TrimPrefix(snapshot, "metastore-")
	if rest == snapshot {
		return 0, false
	}
	parts := strings.SplitN(rest, "-", 2)
	n, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
