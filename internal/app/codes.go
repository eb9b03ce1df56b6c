package app

import (
	"math/rand"
	"strconv"
	"sync"
)

// MaxCodeAttempts bounds collision retries when allocating a room code.
const MaxCodeAttempts = 64

// CodeGenerator yields candidate room codes; registries retry on collision.
type CodeGenerator func() string

// RandomCodes returns six-digit codes in 100000-999999.
func RandomCodes(rnd *rand.Rand) CodeGenerator {
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return strconv.Itoa(100000 + rnd.Intn(900000))
	}
}
