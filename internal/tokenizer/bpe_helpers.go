package tokenizer

import (
	"cmp"
	"math"
	"slices"
	"strings"
)

// merge is an adjacent pair of BPE symbols, keyed to its rank.
type merge [2]string

// parseMerge accepts both "a b" strings and ["a","b"] arrays, the two forms
// tokenizer.json uses.
func parseMerge(raw any) (merge, bool) {
	switch v := raw.(type) {
	case string:
		if strings.HasPrefix(v, "#") {
			return merge{}, false
		}
		a, b, ok := strings.Cut(strings.TrimSpace(v), " ")
		if !ok || a == "" || b == "" || strings.Contains(b, " ") {
			return merge{}, false
		}
		return merge{a, b}, true
	case []any:
		if len(v) != 2 {
			return merge{}, false
		}
		a, aok := v[0].(string)
		b, bok := v[1].(string)
		return merge{a, b}, aok && bok && a != "" && b != ""
	}
	return merge{}, false
}

// applyMerges repeatedly joins the lowest-ranked adjacent pair in word,
// every occurrence at once, until no adjacent pair has a rank.
func applyMerges(word []string, ranks map[merge]int) []string {
	for len(word) > 1 {
		best, bestRank := merge{}, math.MaxInt
		for i := 1; i < len(word); i++ {
			if r, ok := ranks[merge{word[i-1], word[i]}]; ok && r < bestRank {
				best, bestRank = merge{word[i-1], word[i]}, r
			}
		}
		if bestRank == math.MaxInt {
			break
		}
		out := make([]string, 0, len(word))
		for i := 0; i < len(word); i++ {
			if i+1 < len(word) && word[i] == best[0] && word[i+1] == best[1] {
				out = append(out, best[0]+best[1])
				i++
				continue
			}
			out = append(out, word[i])
		}
		word = out
	}
	return word
}

func isSpecialToken(s string) bool {
	return len(s) >= 4 && strings.HasPrefix(s, "<|") && strings.HasSuffix(s, "|>")
}

// specialsLongestFirst returns the <|...|> tokens of the vocabulary ordered
// so a prefix scan finds the longest match.
func specialsLongestFirst(vocab []string) []string {
	var out []string
	for _, t := range vocab {
		if isSpecialToken(t) {
			out = append(out, t)
		}
	}
	slices.SortStableFunc(out, func(a, b string) int { return cmp.Compare(len(b), len(a)) })
	return out
}

// eachSegment walks text, calling fn for every plain run and every special
// token, in order.
func eachSegment(text string, specials []string, fn func(seg string, special bool) error) error {
	plain := 0
	for from := 0; len(specials) > 0; {
		i := strings.Index(text[from:], "<|")
		if i < 0 {
			break
		}
		at := from + i
		match := ""
		for _, sp := range specials {
			if strings.HasPrefix(text[at:], sp) {
				match = sp
				break
			}
		}
		if match == "" {
			from = at + 2
			continue
		}
		if plain < at {
			if err := fn(text[plain:at], false); err != nil {
				return err
			}
		}
		if err := fn(match, true); err != nil {
			return err
		}
		plain = at + len(match)
		from = plain
	}
	if plain < len(text) {
		return fn(text[plain:], false)
	}
	return nil
}

// byteAlphabet is the reversible byte to printable rune mapping of
// byte-level BPE. Printable Latin-1 bytes map to themselves and the rest are
// shifted above U+0100.
func byteAlphabet() ([256]rune, map[rune]byte) {
	var enc [256]rune
	dec := make(map[rune]byte, 256)
	next := rune(256)
	for b := range 256 {
		r := rune(b)
		printable := (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF)
		if !printable {
			r = next
			next++
		}
		enc[b] = r
		dec[r] = byte(b)
	}
	return enc, dec
}

// ByteLevelAlphabet returns the 256 byte-level symbols in byte order. A
// vocabulary holding exactly these symbols can spell any input.
func ByteLevelAlphabet() []string {
	enc, _ := byteAlphabet()
	out := make([]string, 256)
	for b, r := range enc {
		out[b] = string(r)
	}
	return out
}
