// Package report prints index statistics and search results for humans.
//
// The text format is meant for terminals and is not a stable interface.
// FormatYAML emits the same content as a YAML document for scripts.
package report
