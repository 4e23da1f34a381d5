package auth

import "golang.org/x/crypto/bcrypt"

// ErrPasswordTooLong is returned for passwords bcrypt cannot hash.
var ErrPasswordTooLong = bcrypt.ErrPasswordTooLong

// HashPassword hashes a plaintext password with the configured cost, falling
// back to bcrypt's default when the cost is out of range.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// PasswordMatches reports whether plain matches the stored hash.
func PasswordMatches(hashed, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
