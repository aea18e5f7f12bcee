// Package logs reads the daemon log file for `marketscout logs`.
//
// Last returns the trailing lines with bounded memory, Follow polls for new
// lines and restarts from the top when the file is rotated or truncated.
// Filter matches JSON records by component, level, or keyword and falls back
// to substring matching for console-formatted lines.
package logs
