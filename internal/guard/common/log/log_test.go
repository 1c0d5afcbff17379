package log

import (
	"testing"
)

type testLogger struct {
	entries []string
}

func (l *testLogger) Info(_ map[string]any, msg string)  { l.entries = append(l.entries, "INFO:"+msg) }
func (l *testLogger) Error(_ map[string]any, msg string) { l.entries = append(l.entries, "ERROR:"+msg) }
func (l *testLogger) Debug(_ map[string]any, msg string) { l.entries = append(l.entries, "DEBUG:"+msg) }
func (l *testLogger) Warn(_ map[string]any, msg string)  { l.entries = append(l.entries, "WARN:"+msg) }
func (l *testLogger) Fatal(_ map[string]any, msg string) {}

func TestActualZapLogger(t *testing.T) {
	// test with fields and message
	Debug(map[string]any{
		"key1": "value1",
		"key2": 42,
		"key3": true,
	}, "test debug")
	// test with just a message
	Info(nil, "test info")
	Warn(nil, "test warn")
	Error(nil, "test error")
	// Note: Fatal will stop the test, so we don't call it here.
}

func TestSetLoggerAndGlobalLogging(t *testing.T) {
	orig := GetLogger()
	defer func() {
		SetLogger(orig) // Restore original logger after test
	}()
	tlog := &testLogger{}
	SetLogger(tlog)

	Info(nil, "info msg")
	Error(nil, "error msg")
	Debug(nil, "debug msg")
	Warn(nil, "warn msg")

	expected := []string{
		"INFO:info msg",
		"ERROR:error msg",
		"DEBUG:debug msg",
		"WARN:warn msg",
	}

	if len(tlog.entries) != len(expected) {
		t.Fatalf("expected %d log entries, got %d", len(expected), len(tlog.entries))
	}
	for i, msg := range expected {
		if tlog.entries[i] != msg {
			t.Errorf("expected log[%d] = %q, got %q", i, msg, tlog.entries[i])
		}
	}
}

func TestConfigure_ValidLevels(t *testing.T) {
	orig := GetLogger()
	defer func() {
		SetLogger(orig)
	}()

	for _, level := range []string{"debug", "info", "warn", "error", "DEBUG", "Info"} {
		if err := Configure("prod", level); err != nil {
			t.Errorf("Configure(prod, %q) returned error: %v", level, err)
		}
	}
	if err := Configure("dev", "debug"); err != nil {
		t.Errorf("Configure(dev, debug) returned error: %v", err)
	}
}

func TestConfigure_InvalidLevel(t *testing.T) {
	orig := GetLogger()
	defer func() {
		SetLogger(orig)
	}()

	if err := Configure("prod", "verbose"); err == nil {
		t.Error("Configure with invalid level should return an error")
	}
}

func TestNoopLogger(t *testing.T) {
	l := NewNoopLogger()
	// none of these should panic or emit anything
	l.Info(nil, "info")
	l.Error(map[string]any{"k": "v"}, "error")
	l.Debug(nil, "debug")
	l.Warn(nil, "warn")
	l.Fatal(nil, "fatal")
}
