package utils

import (
	"strings"
)

// NormalizeSymbol normalizes a user-input token symbol to the canonical
// upper-case ticker the provider keys its responses by.
func NormalizeSymbol(symbol string) string {
	symbol = strings.TrimSpace(strings.ToUpper(symbol))

	// Remove $ prefix if present (common in chat)
	return strings.TrimPrefix(symbol, "$")
}

// UniqueSymbols normalizes symbols and drops blanks and repeats, keeping
// the first occurrence of each.
func UniqueSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = NormalizeSymbol(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// Chunk splits symbols into consecutive slices of at most size entries.
// A size below one yields a single chunk.
func Chunk(symbols []string, size int) [][]string {
	if len(symbols) == 0 {
		return nil
	}
	if size < 1 || size >= len(symbols) {
		return [][]string{symbols}
	}
	chunks := make([][]string, 0, (len(symbols)+size-1)/size)
	for start := 0; start < len(symbols); start += size {
		end := start + size
		if end > len(symbols) {
			end = len(symbols)
		}
		chunks = append(chunks, symbols[start:end])
	}
	return chunks
}
