// Package domain defines the core domain types and interfaces.
//
// Concept-oriented files (stream.go, snapshot.go, errors.go) hold shared
// types and cross-cutting interfaces. No implementation code - just
// contracts. Keeping interfaces here, on the consumer side, prevents
// circular imports between the engine, adapters, and the app layer.
package domain
