package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("push")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("connected", "gateway", "http://localhost:3001")

	out := buf.String()
	if !strings.Contains(out, "msg=connected") {
		t.Fatalf("expected plain connected message, got: %s", out)
	}
	if !strings.Contains(out, "component=push") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "gateway=http://localhost:3001") {
		t.Fatalf("expected gateway field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("push")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestWithNotificationAttachesFields(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger := WithNotification(L("agent"), "note-1", "bill")
	logger.Info("displayed")

	out := buf.String()
	if !strings.Contains(out, "notificationId=note-1") {
		t.Fatalf("expected notificationId field, got: %s", out)
	}
	if !strings.Contains(out, "kind=bill") {
		t.Fatalf("expected kind field, got: %s", out)
	}
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init("json", "info", &buf)

	L("agent").Info("hello")

	out := buf.String()
	if !strings.Contains(out, `"msg":"hello"`) {
		t.Fatalf("expected JSON output, got: %s", out)
	}
}

func TestInitSwitchesBetweenFormats(t *testing.T) {
	logger := L("agent")

	var buf bytes.Buffer
	Init("json", "info", &buf)
	logger.Info("first")
	if !strings.Contains(buf.String(), `"msg":"first"`) {
		t.Fatalf("expected JSON output, got: %s", buf.String())
	}

	buf.Reset()
	Init("text", "info", &buf)
	logger.Info("second")
	if !strings.Contains(buf.String(), "msg=second") {
		t.Fatalf("expected text output after switch back, got: %s", buf.String())
	}

	buf.Reset()
	Init("json", "info", &buf)
	logger.Info("third")
	if !strings.Contains(buf.String(), `"msg":"third"`) {
		t.Fatalf("expected JSON output after second switch, got: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"WARN", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"", "INFO"},
		{"bogus", "INFO"},
	}
	for _, tc := range cases {
		if got := parseLevel(tc.in).String(); got != tc.want {
			t.Errorf("parseLevel(%q) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
