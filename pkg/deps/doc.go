// Package deps resolves external dependencies with one generic algorithm:
// probe the ambient system, then the private cache, then install a pinned
// build into the cache. Probes run at most once per tier per run and
// short-circuit on first success; installs are one-shot with no retry.
package deps
