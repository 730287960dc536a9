package testutil

import (
	"net"
	"net/http"
	"testing"
	"time"
)

// FreePort reserves a local TCP port and returns it to the caller.
// Params: none.
// Returns: free port number or error.
func FreePort() (int, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer listener.Close()
	return listener.Addr().(*net.TCPAddr).Port, nil
}

// WaitFor polls condition until it holds or timeout expires.
// Params: test handle, timeout, and condition callback.
// Returns: condition became true or test fails.
func WaitFor(tb testing.TB, timeout time.Duration, cond func() bool) {
	tb.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	tb.Fatalf("condition not met within %s", timeout)
}

// WaitHTTPStatus waits until GET url answers with wanted status.
func WaitHTTPStatus(tb testing.TB, url string, status int, timeout time.Duration) {
	tb.Helper()
	WaitFor(tb, timeout, func() bool {
		response, err := http.Get(url)
		if err != nil {
			return false
		}
		defer response.Body.Close()
		return response.StatusCode == status
	})
}
