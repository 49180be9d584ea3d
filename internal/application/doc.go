// Package application provides application initialization and dependency wiring.
// It encapsulates the creation of the channel catalogue, allocator, metrics,
// handlers, routers and HTTP server instances, and the one-shot report run,
// keeping the main package focused on CLI parsing and orchestration.
package application
