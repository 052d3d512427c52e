// Package testutil provides shared test builders for the runner,
// batch, worker, and sink packages, so each package's tests don't
// reinvent the same fixture events.
//
// Grounded on testutil/testutil.go's GenerateTestLogFile/TempFilePath
// shape: small helpers that build realistic-looking fixtures and
// register their own cleanup, rather than each _test.go file hand-
// rolling one-off sample data.
package testutil

import (
	"fmt"
	"os"
	"testing"

	"github.com/kelora-go/kelora/event"
)

// SampleEvent builds an Event carrying a status/method/message field
// set resembling one parsed access-log line, cycling through a small
// set of realistic values keyed by index.
func SampleEvent(i int) *event.Event {
	methods := []string{"GET", "POST", "PUT", "DELETE"}
	statuses := []int64{200, 201, 404, 500}

	ev := event.New(fmt.Sprintf("line %d", i))
	ev.Set("method", event.String(methods[i%len(methods)]))
	ev.Set("status", event.Int(statuses[i%len(statuses)]))
	ev.Set("message", event.String(fmt.Sprintf("request %d", i)))
	return ev
}

// SampleEvents builds n consecutive SampleEvents.
func SampleEvents(n int) []*event.Event {
	out := make([]*event.Event, n)
	for i := range out {
		out[i] = SampleEvent(i)
	}
	return out
}

// GenerateTestLogFile writes n Apache Combined Log format lines (cycled
// from a small realistic sample set, as the teacher's fixture does) to
// a temp file and returns its path; the file is removed automatically
// when the test ends.
func GenerateTestLogFile(t *testing.T, n int) string {
	t.Helper()

	sampleLines := []string{
		`192.168.1.100 - - [01/Jan/2025:10:15:30 +0000] "GET /api/users HTTP/1.1" 200 1024 "-" "Mozilla/5.0"`,
		`172.16.45.67 - - [01/Jan/2025:10:15:31 +0000] "POST /api/login HTTP/1.1" 401 512 "-" "curl/7.68.0"`,
		`10.20.30.40 - - [01/Jan/2025:10:15:32 +0000] "GET /static/logo.png HTTP/1.1" 200 8192 "-" "Mozilla/5.0"`,
		`203.0.113.25 - admin [01/Jan/2025:10:15:33 +0000] "DELETE /api/cache HTTP/1.1" 204 0 "-" "AdminTool/2.0"`,
		`198.51.100.88 - - [01/Jan/2025:10:15:34 +0000] "GET /dataset/ HTTP/1.1" 200 45678 "-" "Python-requests/2.28"`,
	}

	f, err := os.CreateTemp(t.TempDir(), "test_access_*.log")
	if err != nil {
		t.Fatalf("failed to create temp log file: %v", err)
	}
	for i := 0; i < n; i++ {
		fmt.Fprintln(f, sampleLines[i%len(sampleLines)])
	}
	if err := f.Close(); err != nil {
		t.Fatalf("failed to close temp log file: %v", err)
	}
	return f.Name()
}
