// Package logging provides opt-in file-based logging with rotation for the
// hybridsearch core. When enabled, structured JSON logs are written to
// ~/.hybridsearch/logs/ alongside (or instead of) stderr, so index-write
// failures, cache persistence failures and corrupt-index rebuilds (§7 of
// spec.md) all surface through one configurable sink.
package logging
