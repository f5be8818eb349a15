// Package textx contains tests for the text utilities.
package textx

import "testing"

func TestSanitizeText(t *testing.T) {
	in := "he\x00llo\nwo\x7frld\t!"
	got := SanitizeText(in)
	if got != "hello\nworld\t!" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestSingleLine(t *testing.T) {
	got := SingleLine("  dark\n\n and   moody\t ")
	if got != "dark and moody" {
		t.Fatalf("unexpected: %q", got)
	}
}

func TestSlug(t *testing.T) {
	cases := map[string]string{
		"Dune":                    "dune",
		"Spider-Man: No Way Home": "spidermannowayhome",
		"WALL·E":                  "walle",
		"Amélie":                  "amlie",
		"2001: A Space Odyssey":   "2001aspaceodyssey",
		"":                        "",
	}
	for in, want := range cases {
		if got := Slug(in); got != want {
			t.Errorf("Slug(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestItemID(t *testing.T) {
	if got := ItemID("Dune", 2021); got != "dune2021" {
		t.Fatalf("unexpected: %q", got)
	}
	if got := ItemID("Unknown Title", 0); got != "unknowntitle0" {
		t.Fatalf("unexpected: %q", got)
	}
}
