package services

import (
	"strings"
	"testing"
	"time"
)

func TestNumberGeneratorFormatsOrderNumbers(t *testing.T) {
	generator := NewNumberGenerator(NumberGeneratorDeps{
		Entropy: func() string { return "a1b2c3d4-e5f6-7890-abcd-ef1234567890" },
	})

	now := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC)
	number := generator.NextOrderNumber(now)
	if number != "ORD-20240315-A1B2C3" {
		t.Fatalf("unexpected order number %q", number)
	}

	number = generator.NextPaymentNumber(now)
	if number != "PAY-20240315-A1B2C3" {
		t.Fatalf("unexpected payment number %q", number)
	}
}

func TestNumberGeneratorUsesUTCDate(t *testing.T) {
	generator := NewNumberGenerator(NumberGeneratorDeps{
		Entropy: func() string { return "ffffff" },
	})

	// 08:30 JST on the 16th is still 23:30 UTC on the 15th.
	jst := time.FixedZone("JST", 9*60*60)
	now := time.Date(2024, 3, 16, 8, 30, 0, 0, jst)
	number := generator.NextOrderNumber(now)
	if !strings.Contains(number, "-20240315-") {
		t.Fatalf("expected UTC date 20240315 in %q", number)
	}
}

func TestNumberGeneratorDefaultEntropy(t *testing.T) {
	generator := NewNumberGenerator(NumberGeneratorDeps{})

	now := time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
	number := generator.NextOrderNumber(now)

	parts := strings.Split(number, "-")
	if len(parts) != 3 {
		t.Fatalf("expected three segments, got %q", number)
	}
	if parts[0] != "ORD" || parts[1] != "20240315" {
		t.Fatalf("unexpected prefix/date in %q", number)
	}
	if len(parts[2]) != 6 {
		t.Fatalf("expected 6-character suffix, got %q", parts[2])
	}
	if parts[2] != strings.ToUpper(parts[2]) {
		t.Fatalf("expected uppercase suffix, got %q", parts[2])
	}

	if other := generator.NextOrderNumber(now); other == number {
		t.Fatalf("expected distinct suffixes, got %q twice", number)
	}
}
