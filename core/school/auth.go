package school

import (
	"golang.org/x/crypto/bcrypt"
)

// HashCost is the bcrypt cost of coordinator passwords. Tests lower it.
var HashCost = bcrypt.DefaultCost

func HashPassword(pwd string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(pwd), HashCost)
}

func CheckPassword(hash []byte, pwd string) error {
	return bcrypt.CompareHashAndPassword(hash, []byte(pwd))
}
