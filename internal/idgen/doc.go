// Package idgen generates approval identifiers. Callers treat the result as an
// opaque string; tests replace NewFunc to obtain predictable ids.
package idgen
