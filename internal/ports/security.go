package ports

// PasswordHasher derives and verifies salted password hashes. Hash generates
// a fresh random salt per call; both outputs are hex-encoded for storage.
type PasswordHasher interface {
	Hash(password string) (hash, salt string, err error)
	// Compare returns domain.ErrInvalidCredentials on mismatch.
	Compare(hash, salt, password string) error
}
