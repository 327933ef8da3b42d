package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

var adjectives = []string{
	"Cosmic", "Lunar", "Solar", "Orbital", "Nebula",
	"Quantum", "Stellar", "Radiant", "Silent", "Swift",
	"Polar", "Astral", "Crimson", "Golden", "Hidden",
}

var nouns = []string{
	"Comet", "Pulsar", "Quasar", "Voyager", "Anchor",
	"Lumen", "Nova", "Meteor", "Horizon", "Beacon",
	"Rocket", "Orbit", "Galaxy", "Zenith", "Aurora",
}

func pick(list []string) (string, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(list))))
	if err != nil {
		return "", err
	}
	return list[idx.Int64()], nil
}

// GenerateDisplayName creates a default name like "Cosmic Voyager 0420"
func GenerateDisplayName() (string, error) {
	adj, err := pick(adjectives)
	if err != nil {
		return "", fmt.Errorf("failed to pick adjective: %w", err)
	}
	noun, err := pick(nouns)
	if err != nil {
		return "", fmt.Errorf("failed to pick noun: %w", err)
	}
	suffix, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		return "", fmt.Errorf("failed to generate suffix: %w", err)
	}
	return fmt.Sprintf("%s %s %04d", adj, noun, suffix.Int64()), nil
}
