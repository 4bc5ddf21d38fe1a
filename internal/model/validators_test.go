package model

import (
	"strings"
	"testing"
	"time"
)

func TestValidateUsername(t *testing.T) {
	valid := []string{"alice", "bob_2", "user.name", "a@b", "x+y", "a-b"}
	for _, name := range valid {
		if err := ValidateUsername(name); err != nil {
			t.Fatalf("expected %q to be valid: %v", name, err)
		}
	}

	invalid := []string{"", "me", "Me", "ME", "has space", "emoji😀", strings.Repeat("a", 151)}
	for _, name := range invalid {
		if err := ValidateUsername(name); err == nil {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestValidateSlug(t *testing.T) {
	valid := []string{"books", "sci-fi", "a_b", "X9"}
	for _, slug := range valid {
		if err := ValidateSlug(slug); err != nil {
			t.Fatalf("expected %q to be valid: %v", slug, err)
		}
	}

	invalid := []string{"", "has space", "a/b", "ünicode", strings.Repeat("a", 51)}
	for _, slug := range invalid {
		if err := ValidateSlug(slug); err == nil {
			t.Fatalf("expected %q to be rejected", slug)
		}
	}
}

func TestValidateScore(t *testing.T) {
	for _, score := range []int{1, 5, 10} {
		if err := ValidateScore(score); err != nil {
			t.Fatalf("expected %d to be valid: %v", score, err)
		}
	}
	for _, score := range []int{-1, 0, 11} {
		if err := ValidateScore(score); err == nil {
			t.Fatalf("expected %d to be rejected", score)
		}
	}
}

func TestValidateYear(t *testing.T) {
	now := time.Now().Year()
	for _, year := range []int{1, 1965, now} {
		if err := ValidateYear(year); err != nil {
			t.Fatalf("expected %d to be valid: %v", year, err)
		}
	}
	for _, year := range []int{0, -5, now + 1} {
		if err := ValidateYear(year); err == nil {
			t.Fatalf("expected %d to be rejected", year)
		}
	}
}
