package debug

import (
	"bytes"
	"io"
	"os"
	"testing"
)

// captureStderr runs fn with os.Stderr redirected to a pipe and returns
// what was written.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stderr = w
	defer func() { os.Stderr = old }()

	fn()

	w.Close()
	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func TestLogf_GatedOnEnabled(t *testing.T) {
	oldEnabled := enabled
	oldVerbose := verboseMode
	defer func() { enabled = oldEnabled; verboseMode = oldVerbose }()

	enabled = false
	verboseMode = false
	if out := captureStderr(t, func() { Logf("hidden %d\n", 1) }); out != "" {
		t.Errorf("output while disabled: %q", out)
	}

	enabled = true
	if out := captureStderr(t, func() { Logf("shown %d\n", 2) }); out != "shown 2\n" {
		t.Errorf("output = %q, want %q", out, "shown 2\n")
	}
}

func TestVerboseFlagEnables(t *testing.T) {
	oldEnabled := enabled
	oldVerbose := verboseMode
	defer func() { enabled = oldEnabled; verboseMode = oldVerbose }()

	enabled = false
	SetVerbose(false)
	if Enabled() {
		t.Error("Enabled() = true with everything off")
	}
	SetVerbose(true)
	if !Enabled() {
		t.Error("Enabled() = false after SetVerbose(true)")
	}
}

func TestQuietMode(t *testing.T) {
	oldQuiet := quietMode
	defer func() { quietMode = oldQuiet }()

	SetQuiet(false)
	if IsQuiet() {
		t.Error("IsQuiet() = true after SetQuiet(false)")
	}
	SetQuiet(true)
	if !IsQuiet() {
		t.Error("IsQuiet() = false after SetQuiet(true)")
	}
}
