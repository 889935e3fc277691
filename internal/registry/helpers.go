package registry

import (
	"strings"
	"time"
)

func toUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMillis(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(v).UTC()
}

func normalizeMAC(address string) string {
	return strings.ToUpper(strings.TrimSpace(address))
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
