// Package sentinel holds infrastructure-level error facts.
//
// Stores and clients return these, optionally wrapped, and services translate
// them into domain errors:
//   - ErrNotFound: the attempt, session or cache entry does not exist
//   - ErrExpired: a cached entry or decision outlived its TTL
//
// Input validation failures use pkg/domain-errors directly.
package sentinel

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrExpired  = errors.New("expired")
)
