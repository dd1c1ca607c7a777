package local

import (
	"fmt"
	"strings"
)

// Pragmas tunes file backed databases; in-memory DSNs are left untouched.
type Pragmas struct {
	WAL           bool
	BusyTimeoutMS int
}

// DefaultPragmas enables WAL with a 5s busy timeout so the emulator and CLI can share a file.
func DefaultPragmas() Pragmas {
	return Pragmas{WAL: true, BusyTimeoutMS: 5000}
}

// Apply appends missing _pragma parameters to dsn.
func (p Pragmas) Apply(dsn string) string {
	if isMemoryDSN(dsn) {
		return dsn
	}
	lower := strings.ToLower(dsn)
	if p.WAL && !strings.Contains(lower, "_pragma=journal_mode") {
		dsn = withPragma(dsn, "journal_mode(WAL)")
	}
	if p.BusyTimeoutMS > 0 && !strings.Contains(lower, "_pragma=busy_timeout") {
		dsn = withPragma(dsn, fmt.Sprintf("busy_timeout(%d)", p.BusyTimeoutMS))
	}
	return dsn
}

func isMemoryDSN(dsn string) bool {
	lower := strings.ToLower(dsn)
	return dsn == "" || dsn == ":memory:" || strings.HasPrefix(lower, "file::memory:") || strings.Contains(lower, "mode=memory")
}

func withPragma(dsn, pragma string) string {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=" + pragma
}
