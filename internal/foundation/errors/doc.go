// Package errors provides the classified error primitives used across sitebuilder.
//
// Every error that crosses a component boundary carries a category (what kind of
// failure it is), a severity (how far it propagates) and structured context
// (which page, which file, which stack frames). Resolution-level failures are
// converted to inline markers close to where they happen; configuration and batch
// failures propagate to the caller.
//
// Example usage:
//
//	err := errors.NewError(errors.CategoryMissingReference, "included file not found").
//		WithContext("src", src).
//		WithContext("file", cwf).
//		Build()
package errors
