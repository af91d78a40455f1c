package log

import (
	"bytes"
	"strings"
	"testing"
)

type bufOutput struct {
	buf bytes.Buffer
}

func (o *bufOutput) Write(_ *Entry, formatted []byte) error {
	_, err := o.buf.Write(formatted)
	return err
}
func (o *bufOutput) Close() error { return nil }

func TestLevelFiltering(t *testing.T) {
	out := &bufOutput{}
	logger := NewLogger(WithLevel(WarnLevel), WithOutput(out))
	logger.Info("dropped")
	logger.Warn("kept")
	if strings.Contains(out.buf.String(), "dropped") {
		t.Fatalf("info should be filtered at warn level")
	}
	if !strings.Contains(out.buf.String(), "kept") {
		t.Fatalf("warn should pass at warn level")
	}
}

func TestWithCarriesFields(t *testing.T) {
	out := &bufOutput{}
	logger := NewLogger(WithOutput(out)).With(Component("registry"))
	logger.Info("hello", F("feature", "WS-047"))
	line := out.buf.String()
	if !strings.Contains(line, "component=registry") || !strings.Contains(line, "feature=WS-047") {
		t.Fatalf("missing fields in %q", line)
	}
}

func TestJSONFormatter(t *testing.T) {
	out := &bufOutput{}
	logger := NewLogger(WithFormatter(&JSONFormatter{}), WithOutput(out))
	logger.Info("snapshot", Int("depth", 21))
	line := out.buf.String()
	if !strings.Contains(line, `"msg":"snapshot"`) || !strings.Contains(line, `"depth":21`) {
		t.Fatalf("unexpected json line %q", line)
	}
}

func TestParseLevel(t *testing.T) {
	if lvl, err := ParseLevel("debug"); err != nil || lvl != DebugLevel {
		t.Fatalf("debug: %v %v", lvl, err)
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
