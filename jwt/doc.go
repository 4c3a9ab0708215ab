// Package jwt signs and verifies the HS256 access and refresh tokens.
//
// The algorithm is pinned: tokens that declare any other alg, including
// "none", are rejected before the key is consulted. Every parsed token must
// carry sub, jti, sid, iat and exp, and its typ claim must match the class
// the caller expects.
//
// The kid header is written when Config.KeyID is set and enforced on parse.
// Multi-key rotation is not implemented.
package jwt
