// Package roomid generates memorable room identifiers such as
// "brave-cobalt-heron-harbor".
package roomid

import (
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/rs/zerolog/log"
)

// Words is the number of words in a generated id.
const Words = 4

// Generate returns a random id built from Words distinct word lists joined
// with hyphens.
func Generate() string {
	pool := [][]string{moods, colors, birds, places, instruments}

	// Partial Fisher-Yates over the pool picks lists without replacement.
	for i := 0; i < Words; i++ {
		j := i + randomIndex(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}

	words := make([]string, Words)
	for i := range words {
		list := pool[i]
		words[i] = list[randomIndex(len(list))]
	}
	return strings.Join(words, "-")
}

// randomIndex returns a uniformly random index in [0, n).
func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		log.Panic().Err(err).Msg("failed to read random index")
	}
	return int(v.Int64())
}
