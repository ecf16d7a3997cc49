// Package util provides the small helpers shared by every other package:
// human-readable frequency parsing and timestamped console output.
package util

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StrToHz parses a human-readable frequency string into integer Hz.
// Accepted forms: "100M" (MHz), "433.92M", "1.6G" (GHz), or a plain
// integer number of Hz, optionally surrounded by whitespace. Malformed
// input returns (0, false) - the "null marker" of the original.
func StrToHz(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	suffix := s[len(s)-1]
	var mult float64
	numPart := s

	switch suffix {
	case 'G', 'g':
		mult = 1e9
		numPart = s[:len(s)-1]
	case 'M', 'm':
		mult = 1e6
		numPart = s[:len(s)-1]
	case 'K', 'k':
		mult = 1e3
		numPart = s[:len(s)-1]
	default:
		mult = 1
	}

	numPart = strings.TrimSpace(numPart)
	f, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, false
	}

	return int64(f * mult), true
}

// ConsoleMessage prints a UTC-timestamped, module-prefixed console line,
// the operator-facing counterpart to structured logrus diagnostics.
func ConsoleMessage(module, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	ts := time.Now().UTC().Format("2006-01-02 15:04:05 UTC")
	if module == "" {
		fmt.Printf("%s: %s\n", ts, msg)
		return
	}
	fmt.Printf("%s [%s]: %s\n", ts, module, msg)
}

// ConsoleMessageBare prints a line with no timestamp or module prefix,
// used for banner/logo output.
func ConsoleMessageBare(format string, args ...any) {
	fmt.Printf(format+"\n", args...)
}
