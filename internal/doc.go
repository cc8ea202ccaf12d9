// Package internal holds private helpers of authcore: random one-time codes,
// secret tokens and recovery-code hashing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//
// Nothing here appears in the public authcore API.
package internal
