package testutils

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// TestDataGenerator produces player names and guesses.
type TestDataGenerator struct {
	faker *gofakeit.Faker
}

// NewTestDataGenerator creates a generator. An explicit seed makes the
// output repeatable.
func NewTestDataGenerator(seed ...uint64) *TestDataGenerator {
	s := uint64(time.Now().UnixNano())
	if len(seed) > 0 {
		s = seed[0]
	}
	return &TestDataGenerator{faker: gofakeit.New(s)}
}

// PlayerName returns a display name within the accepted length range. The
// numeric suffix keeps names in one room distinct.
func (g *TestDataGenerator) PlayerName() string {
	return g.faker.FirstName() + " " + g.faker.Numerify("###")
}

// WrongTitle returns a guess that will not match any seeded song.
func (g *TestDataGenerator) WrongTitle() string {
	return g.faker.HipsterSentence()
}

// AudioClip returns n bytes of fake recording data.
func (g *TestDataGenerator) AudioClip(n int) []byte {
	clip := make([]byte, n)
	for i := range clip {
		clip[i] = byte(g.faker.Number(0, 255))
	}
	return clip
}
