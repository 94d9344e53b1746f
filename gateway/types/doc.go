// Package types contains the generic gateway types and interfaces used
// throughout the application. These are defined separately from the main
// gateway package so that packages that use router functionality don't need
// to depend on a specific implementation.
package types
