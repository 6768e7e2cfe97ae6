// Package types defines the changelog document model, foreign-key and
// rebuild-plan entities, engine options, and the standard errors shared by
// the relift packages.
package types
