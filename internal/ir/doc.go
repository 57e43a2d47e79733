// Package ir provides the canonical data types shared by every relation
// negotiation package.
//
// This package contains type definitions and their wire encoding only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Capability names and versions are compared by exact byte equality,
//     never normalized or case-folded
//   - The provider payload is the only wire artifact and is encoded as
//     canonical JSON (sorted keys, no HTML escaping)
//   - All JSON tags use snake_case
package ir
