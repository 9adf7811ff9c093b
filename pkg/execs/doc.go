// Package execs runs external tools as blocking subprocesses, capturing
// their output into structured results.
package execs
