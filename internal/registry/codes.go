package registry

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// ErrCodeAllocationExhausted is returned when no free room code was found
// within the attempt bound.
var ErrCodeAllocationExhausted = errors.New("room code allocation exhausted")

const (
	codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeLength   = 6
	// maxCodeAttempts bounds the collision retries of one allocation.
	maxCodeAttempts = 16
	// singlePlayerPrefix marks codes of sessions nobody can join.
	singlePlayerPrefix = "SP-"
)

// CodeSource produces candidate room codes. Collisions are the caller's problem.
type CodeSource func() (string, error)

// RandomCode draws codeLength characters from codeAlphabet.
func RandomCode() (string, error) {
	base := big.NewInt(int64(len(codeAlphabet)))
	buf := make([]byte, codeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, base)
		if err != nil {
			return "", err
		}
		buf[i] = codeAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// codeBook maps the codes of open multiplayer sessions to their ids. It is
// guarded by Registry.codeMu.
type codeBook map[string]string

// reserve finds an unused code and books it for id.
func (b codeBook) reserve(src CodeSource, id string) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := src()
		if err != nil {
			return "", err
		}
		if _, taken := b[code]; !taken {
			b[code] = id
			return code, nil
		}
	}
	return "", ErrCodeAllocationExhausted
}

// release frees code if it is still booked for id.
func (b codeBook) release(code, id string) {
	if b[code] == id {
		delete(b, code)
	}
}
