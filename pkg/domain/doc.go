// Package domain defines the core mission types shared across the Skygate
// pipeline stages.
//
// This package contains pure domain logic with ZERO external dependencies
// outside the Go standard library. All types in this package are:
//
// - Independent of infrastructure (no transport, LLM, or terminal coupling)
// - Stable across pipeline stages (parser, validator, composer all speak them)
// - Testable in isolation without mocks
//
// Other packages (dsl, safety, mavlink, translate, ...) produce and consume
// these types. The dependency direction is always:
//
//	Pipeline stage → Domain (CORRECT)
//	Domain → Pipeline stage (FORBIDDEN)
package domain
