// Package internalerr holds the sentinel errors the engine raises.
// Matching spec's error-handling design, only two kinds ever propagate
// out of the core: ConfigurationInvalid and LoaderFailure. Numerical
// degeneracy and missing-field access are policies handled in place,
// never surfaced as errors.
package internalerr

import "errors"

// Sentinel errors for the conditions the core raises instead of
// degrading silently.
var (
	// ErrConfigurationInvalid means Options failed validation: an empty
	// similarity-function list, mismatched m/u or field-weight lengths,
	// a non-positive batch size, a non-finite threshold, or no Loader.
	ErrConfigurationInvalid = errors.New("relinker: configuration invalid")

	// ErrLoaderFailure wraps an error returned by the caller-supplied
	// Loader. The core reports it unchanged; this sentinel lets callers
	// use errors.Is to distinguish it from ErrConfigurationInvalid.
	ErrLoaderFailure = errors.New("relinker: loader failure")
)
