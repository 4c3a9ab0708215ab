package password

import (
	"crypto/sha256"
	"crypto/subtle"
)

// Match checks password against stored, which is either an argon2id PHC
// hash or a plaintext secret taken from configuration. Plaintext is
// compared through fixed-size digests so timing reveals neither content
// nor length.
func (a *Argon2) Match(password, stored string) (bool, error) {
	if IsHash(stored) {
		return a.Verify(password, stored)
	}
	if stored == "" {
		return false, nil
	}
	x := sha256.Sum256([]byte(password))
	y := sha256.Sum256([]byte(stored))
	return subtle.ConstantTimeCompare(x[:], y[:]) == 1, nil
}

// Burn performs one hash verification's worth of work and discards the
// result. Logins for unknown users call it so they take as long as a
// wrong password for a known user.
func (a *Argon2) Burn(password string) {
	if a.dummy == "" {
		return
	}
	_, _ = a.Verify(password, a.dummy)
}
