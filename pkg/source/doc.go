// Package source classifies a working directory into exactly one source
// mode, by evaluating ordered rules against the directory's top-level files.
package source
