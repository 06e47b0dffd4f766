package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// serialBits is the size of generated certificate serial numbers. 159 bits
// keeps the encoded serial positive and within the 20-octet RFC 5280 limit.
const serialBits = 159

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generating random bytes: %w", err)
	}
	return b, nil
}

// RandomSerial generates a random certificate serial number.
func RandomSerial() (*big.Int, error) {
	limit := new(big.Int).Lsh(big.NewInt(1), serialBits)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return nil, fmt.Errorf("generating serial number: %w", err)
	}
	return n, nil
}
