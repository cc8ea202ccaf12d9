// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Hashes carrying a bcrypt prefix ($2a$, $2b$, $2y$) are accepted by
// [Argon2.Verify] for records created before the switch to argon2id.
// [Argon2.NeedsUpgrade] reports true for them and for argon2id hashes made
// with weaker parameters, so the caller can re-hash on the next login.
//
// [Policy] holds the strength rule for new passwords.
//
// This package does not store passwords and imports no other authcore package.
package password
