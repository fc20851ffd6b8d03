package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	orderNumberPrefix   = "ORD"
	paymentNumberPrefix = "PAY"
	numberSuffixLength  = 6
	numberDateLayout    = "20060102"
)

// NumberGeneratorDeps bundles collaborators for the number generator.
type NumberGeneratorDeps struct {
	// Entropy supplies the opaque suffix source; defaults to uuid.NewString.
	Entropy func() string
}

type numberGenerator struct {
	entropy func() string
}

// NewNumberGenerator builds a NumberGenerator producing ORD-YYYYMMDD-XXXXXX /
// PAY-YYYYMMDD-XXXXXX numbers. The suffix is random rather than sequential so
// numbers neither contend on a counter nor leak order volume. Collisions are
// possible and resolved at persistence time.
func NewNumberGenerator(deps NumberGeneratorDeps) NumberGenerator {
	entropy := deps.Entropy
	if entropy == nil {
		entropy = uuid.NewString
	}
	return &numberGenerator{entropy: entropy}
}

func (g *numberGenerator) NextOrderNumber(now time.Time) string {
	return g.format(orderNumberPrefix, now)
}

func (g *numberGenerator) NextPaymentNumber(now time.Time) string {
	return g.format(paymentNumberPrefix, now)
}

func (g *numberGenerator) format(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format(numberDateLayout), g.suffix())
}

func (g *numberGenerator) suffix() string {
	raw := strings.ToUpper(strings.ReplaceAll(g.entropy(), "-", ""))
	if len(raw) > numberSuffixLength {
		raw = raw[:numberSuffixLength]
	}
	return raw
}
