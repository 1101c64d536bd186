package logger

import (
	"fmt"
	"io"
	"os"
)

var DebugEnabled bool

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// Debugf prints messages only if DebugEnabled is true. Debug output goes to
// standard error so it never mixes with command output.
func Debugf(format string, args ...interface{}) {
	if DebugEnabled {
		fmt.Fprintf(stderr, "[DEBUG] "+format+"\n", args...)
	}
}

// Infof prints messages always (standard output)
func Infof(format string, args ...interface{}) {
	fmt.Fprintf(stdout, format+"\n", args...)
}

// Warnf reports a degraded but non-fatal condition on standard error
func Warnf(format string, args ...interface{}) {
	fmt.Fprintf(stderr, "[WARN] "+format+"\n", args...)
}

// SetOutput redirects logging. Nil leaves a stream unchanged.
func SetOutput(out, errOut io.Writer) {
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}
