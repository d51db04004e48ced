// Package update provides the pure decision helpers of the self-update
// pipeline: whether an update should proceed, and which release asset to fetch.
//
// Nothing in this package performs I/O. Downloads, digest verification,
// extraction, and installation live elsewhere; this package only turns
// release metadata plus the caller's mode flags into a decision.
//
// Version model
//   - Versions are opaque tags compared for exact equality ("v.0.1.0" and
//     "v.0.2.0" differ, "v.0.1.0" and "v.0.1.0" match). No ordering is implied:
//     a remote tag that differs from the local version is an update.
//   - An empty remote tag means the release carried no usable version.
//
// Asset naming
//   - Normal updates fetch exactly "package-<tag>.zip".
//   - Forced updates fetch the first "package*.zip" asset in release order.
package update
