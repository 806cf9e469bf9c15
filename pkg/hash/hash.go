package hash

import "golang.org/x/crypto/bcrypt"

// Cost 12 is deliberately above bcrypt.DefaultCost; login latency stays well
// under the HTTP write timeout.
const cost = 12

func HashPassword(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
