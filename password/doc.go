// Package password hashes and verifies passwords with argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// NeedsUpgrade reports hashes produced with weaker parameters so callers
// can rehash after the next successful login. Match additionally accepts
// plaintext secrets, which is how the bootstrap owner password may be
// supplied through the environment.
package password
