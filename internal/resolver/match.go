package resolver

import (
	"strings"

	"github.com/hession/teachmate/internal/memory"
)

// tokens splits on single spaces. Runs of spaces yield empty tokens,
// and those count like any other token.
func tokens(s string) []string {
	return strings.Split(s, " ")
}

// Overlap counts the prompt tokens present in key's token set.
// Repeated prompt tokens count each time.
func Overlap(prompt, key string) int {
	keyTokens := tokens(key)
	set := make(map[string]struct{}, len(keyTokens))
	for _, t := range keyTokens {
		set[t] = struct{}{}
	}

	count := 0
	for _, t := range tokens(prompt) {
		if _, ok := set[t]; ok {
			count++
		}
	}
	return count
}

// BestMatch returns the entry with the highest overlap, if that overlap is at
// least minOverlap. Ties go to the earliest entry.
func BestMatch(prompt string, entries []memory.Entry, minOverlap int) (memory.Entry, int, bool) {
	var (
		best      memory.Entry
		bestCount int
		found     bool
	)
	for _, e := range entries {
		n := Overlap(prompt, e.Prompt)
		if n >= minOverlap && n > bestCount {
			best, bestCount, found = e, n, true
		}
	}
	return best, bestCount, found
}
