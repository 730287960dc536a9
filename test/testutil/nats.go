package testutil

import (
	"os/exec"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
)

// StartJetStream runs a throwaway nats-server with JetStream for one test.
// Params: test handle; the test is skipped when nats-server is not installed.
// Returns: client URL; the server is stopped through tb.Cleanup.
func StartJetStream(tb testing.TB) string {
	tb.Helper()

	binary, err := exec.LookPath("nats-server")
	if err != nil {
		tb.Skipf("nats-server is required for integration test: %v", err)
	}
	port, err := FreePort()
	if err != nil {
		tb.Fatalf("free port: %v", err)
	}

	cmd := exec.Command(binary, "-js", "-a", "127.0.0.1", "-p", strconv.Itoa(port), "-sd", tb.TempDir())
	if err := cmd.Start(); err != nil {
		tb.Fatalf("start nats-server: %v", err)
	}
	tb.Cleanup(func() { stopProcess(cmd) })

	url := "nats://127.0.0.1:" + strconv.Itoa(port)
	WaitFor(tb, 8*time.Second, func() bool { return jetStreamReady(url) })
	return url
}

// jetStreamReady reports whether server accepts connections and answers account info.
func jetStreamReady(url string) bool {
	nc, err := nats.Connect(url, nats.Timeout(500*time.Millisecond))
	if err != nil {
		return false
	}
	defer nc.Close()
	js, err := nc.JetStream()
	if err != nil {
		return false
	}
	_, err = js.AccountInfo()
	return err == nil
}

// stopProcess sends SIGTERM and kills the process when it does not exit in time.
func stopProcess(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Signal(syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		_, _ = cmd.Process.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		_ = cmd.Process.Kill()
		<-done
	}
}
