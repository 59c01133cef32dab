// Package types defines the shared data model for the compute substrate:
// task descriptors, kernel identity, and the closed set of error kinds
// every component reports through.
package types
