// Package app contains the application layer: use case orchestration across
// the stream repository, the tally engine, and the event publisher.
package app
