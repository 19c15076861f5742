package roomservice

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/Black-And-White-Club/reverse-chorus/internal/gametypes"
)

// CodeGenerator draws a candidate room code.
type CodeGenerator func() (string, error)

// RandomCode draws a code uniformly over the room code alphabet.
func RandomCode() (string, error) {
	alphabet := gametypes.RoomCodeAlphabet
	max := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, gametypes.RoomCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw room code: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}
