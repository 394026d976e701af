// Package ir provides the canonical intermediate representation for geochunk:
// the compiled job types, RFC 8785 canonical JSON, and the domain-separated
// digests used for task keys and dataset fingerprints.
//
// All other internal packages may import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Canonical JSON carries no floats; float64 elements are digested as
//     shortest round-trip strings (FloatString)
//   - Names are NFC normalized before comparison and hashing
//   - All JSON tags use snake_case
//   - Logical clocks (seq) only, never wall-clock timestamps, in task keys
package ir
