// Package apperr centralizes the engine's error taxonomy. Errors are plain
// wrapped stdlib errors (fmt.Errorf + %w), classified via a handful of
// sentinel values rather than a custom error-code framework.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrInputValidation marks a caller mistake: bad address, unsupported
	// chain, out-of-range hop/fanout parameters. Always escapes the engine.
	ErrInputValidation = errors.New("input validation error")

	// ErrFatal marks a condition the engine cannot recover from: a missing
	// ruleset file, a misconfigured indexer client. Always escapes.
	ErrFatal = errors.New("fatal engine error")

	// ErrTransientUpstream marks a single failed indexer call. Absorbed
	// per-address during collection; counted in the result summary.
	ErrTransientUpstream = errors.New("transient upstream error")

	// ErrDataQuality marks a transaction or record that could not be
	// parsed/classified cleanly. Absorbed; the record is skipped.
	ErrDataQuality = errors.New("data quality error")

	// ErrRulesetCorruption marks a single rule entry that failed to parse
	// or dispatch. Absorbed; the rule is skipped, the rest of the ruleset
	// still loads.
	ErrRulesetCorruption = errors.New("ruleset corruption error")
)

// Wrap attaches a sentinel classification to err, preserving errors.Is/As.
func Wrap(sentinel error, context string, err error) error {
	return fmt.Errorf("%s: %s: %w", context, err, sentinel)
}

// IsTransient reports whether err should be absorbed as a transient
// per-address/per-record failure rather than escaping the engine.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransientUpstream) ||
		errors.Is(err, ErrDataQuality) ||
		errors.Is(err, ErrRulesetCorruption)
}
