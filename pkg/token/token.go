// Package token mints ticket IDs and upload keys from format templates.
//
// A template mixes literal text with the placeholders {number}, {word} and
// {uuid}. Each occurrence is replaced left-to-right by an independent draw:
// {number} by a uniform integer in [0, 100), {word} by a pick from the
// bundled word list, {uuid} by a canonical v4 UUID.
//
// {uuid} alone carries enough entropy for unauthenticated tickets. Short
// word templates like "{number}-{word}-{word}-{word}" are only suitable for
// the authenticated tier.
package token

import (
	_ "embed"
	"math/rand/v2"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

//go:embed wordlist.txt
var wordlistRaw string

var words = strings.Split(strings.TrimSpace(wordlistRaw), "\n")

// Generate expands a token format template.
func Generate(format string) string {
	out := format

	for strings.Contains(out, "{number}") {
		n := rand.IntN(100)
		out = strings.Replace(out, "{number}", strconv.Itoa(n), 1)
	}

	for strings.Contains(out, "{word}") {
		w := words[rand.IntN(len(words))]
		out = strings.Replace(out, "{word}", w, 1)
	}

	for strings.Contains(out, "{uuid}") {
		out = strings.Replace(out, "{uuid}", uuid.NewString(), 1)
	}

	return out
}

// Words reports the number of entries in the bundled word list.
func Words() int {
	return len(words)
}
