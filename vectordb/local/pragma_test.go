package local

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPragmas_Apply(t *testing.T) {
	testCases := []struct {
		description string
		pragmas     Pragmas
		dsn         string
		expect      string
	}{
		{description: "memory", pragmas: DefaultPragmas(), dsn: ":memory:", expect: ":memory:"},
		{description: "shared memory", pragmas: DefaultPragmas(), dsn: "file::memory:?cache=shared", expect: "file::memory:?cache=shared"},
		{description: "file", pragmas: DefaultPragmas(), dsn: "/tmp/v.sqlite", expect: "/tmp/v.sqlite?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"},
		{description: "existing query", pragmas: Pragmas{BusyTimeoutMS: 100}, dsn: "/tmp/v.sqlite?cache=shared", expect: "/tmp/v.sqlite?cache=shared&_pragma=busy_timeout(100)"},
		{description: "already set", pragmas: DefaultPragmas(), dsn: "/tmp/v.sqlite?_pragma=journal_mode(DELETE)", expect: "/tmp/v.sqlite?_pragma=journal_mode(DELETE)&_pragma=busy_timeout(5000)"},
		{description: "disabled", pragmas: Pragmas{}, dsn: "/tmp/v.sqlite", expect: "/tmp/v.sqlite"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.expect, tc.pragmas.Apply(tc.dsn), tc.description)
	}
}
