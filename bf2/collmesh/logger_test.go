package collmesh

import (
	"bytes"
	"strings"
	"testing"
)

type lineRecorder struct {
	writes []string
}

func (r *lineRecorder) Write(p []byte) (int, error) {
	r.writes = append(r.writes, string(p))
	return len(p), nil
}

func TestLoggerNil(t *testing.T) {
	var l *Logger
	l.Printf("ignored %d", 1)
	if l.Col(0, 1, COL_SOLDIER) != nil {
		t.Errorf("nil logger col is not nil")
	}
	if NewLogger(nil) != nil {
		t.Errorf("NewLogger(nil) is not nil")
	}
}

func TestLoggerColPrefix(t *testing.T) {
	r := &lineRecorder{}
	l := NewLogger(r)
	l.Printf("plain %s", "line")
	l.Col(1, 2, COL_AI).Printf("faces %d", 7)

	expected := []string{"plain line\n", "N1G2C3: faces 7\n"}
	if len(r.writes) != len(expected) {
		t.Fatalf("writes %q; expected %q", r.writes, expected)
	}
	for i := range expected {
		if r.writes[i] != expected[i] {
			t.Errorf("write %d %q; expected %q", i, r.writes[i], expected[i])
		}
	}
}

func TestMarshalLogsCols(t *testing.T) {
	var buf bytes.Buffer
	opts := testExportOptions()
	opts.Log = NewLogger(&buf)
	if _, err := gltfTestMesh().Marshal(opts); err != nil {
		t.Fatal(err)
	}
	for _, prefix := range []string{"N0G0C0: ", "N0G0C2: ", "N1G0C0: ", "N1G1C0: "} {
		if !strings.Contains(buf.String(), prefix+"[crate]") {
			t.Errorf("no %q line in log:\n%s", prefix, buf.String())
		}
	}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if !strings.HasPrefix(line, "N") {
			t.Errorf("line %q without col prefix", line)
		}
	}
}
