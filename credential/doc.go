// Package credential defines the user auth record and the store contract the
// engine persists it through.
//
// Updates are expressed as [Fields] (a partial write) and an optional
// [Condition] evaluated against the stored row at write time. Adapters must
// evaluate the condition and apply the write as one atomic step; single-use
// consumption of recovery codes and email OTPs depends on it.
//
// Adapters live in subpackages: memory (tests and examples), redisstore and
// pgstore.
//
// # What this package must NOT do
//
//   - Hash, compare or generate secrets. The engine owns all cryptography.
//   - Perform I/O.
package credential
