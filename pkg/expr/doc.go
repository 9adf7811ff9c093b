// Package expr provides the CEL environment used by source classification
// rules, including file path helpers and a shallow top-level field scan.
package expr
