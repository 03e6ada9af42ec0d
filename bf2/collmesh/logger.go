package collmesh

import (
	"fmt"
	"io"
)

// Logger is optional verbose output of export, import and rebuild.
// nil *Logger discards everything.
type Logger struct {
	w      io.Writer
	prefix string
}

func NewLogger(w io.Writer) *Logger {
	if w == nil {
		return nil
	}
	return &Logger{w: w}
}

// Col returns logger prefixing lines with col address, N0G1C2: ...
func (l *Logger) Col(iPart, iGeom int, colType ColType) *Logger {
	if l == nil {
		return nil
	}
	return &Logger{w: l.w, prefix: l.prefix + fmt.Sprintf("N%dG%dC%d: ", iPart, iGeom, colType)}
}

// Printf emits whole line with single Write, so line based sinks never see partial lines
func (l *Logger) Printf(format string, a ...interface{}) {
	if l != nil {
		fmt.Fprint(l.w, l.prefix+fmt.Sprintf(format, a...)+"\n")
	}
}
