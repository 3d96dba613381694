package tokenizer

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// endOfText is the GPT-2 end-of-text marker. It stands in for BOS and EOS
// when tokenizer_config.json names neither.
const endOfText = "<|endoftext|>"

// gpt2Split is the GPT-2 pre-tokenizer regex. Go regexp has no lookahead,
// so the trailing-whitespace rule is collapsed into \s+.
const gpt2Split = `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`

// HFTokenizer is a byte-level BPE tokenizer loaded from tokenizer.json.
type HFTokenizer struct {
	ids      map[string]int
	vocab    []string
	ranks    map[merge]int
	toRune   [256]rune
	fromRune map[rune]byte
	split    *regexp.Regexp
	specials []string

	bosID, eosID, unkID int
	prependBOS          bool

	cache sync.Map // pre-token -> []string
}

type tokenizerFile struct {
	Model struct {
		Type     string         `json:"type"`
		Vocab    map[string]int `json:"vocab"`
		Merges   []any          `json:"merges"`
		UnkToken string         `json:"unk_token"`
	} `json:"model"`
	PreTokenizer *struct {
		Type          string `json:"type"`
		Pretokenizers []struct {
			Type    string `json:"type"`
			Pattern struct {
				Regex string `json:"Regex"`
			} `json:"pattern"`
		} `json:"pretokenizers"`
	} `json:"pre_tokenizer"`
	AddedTokens []struct {
		ID      int    `json:"id"`
		Content string `json:"content"`
	} `json:"added_tokens"`
}

// tokenName decodes a special token given either as a string or as an
// AddedToken object.
type tokenName string

func (n *tokenName) UnmarshalJSON(b []byte) error {
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(b, (*string)(n)); err == nil {
		return nil
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	*n = tokenName(obj.Content)
	return nil
}

type tokenizerConfig struct {
	AddBOS bool      `json:"add_bos_token"`
	BOS    tokenName `json:"bos_token"`
	EOS    tokenName `json:"eos_token"`
}

// LoadHFTokenizer reads tokenizer.json and, when configPath is non-empty and
// exists, tokenizer_config.json.
func LoadHFTokenizer(tokenizerPath, configPath string) (*HFTokenizer, error) {
	data, err := os.ReadFile(tokenizerPath)
	if err != nil {
		return nil, err
	}
	var cfg []byte
	if configPath != "" {
		cfg, err = os.ReadFile(configPath)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	return LoadHFTokenizerBytes(data, cfg)
}

// LoadHFTokenizerBytes is LoadHFTokenizer over in-memory files. config may
// be nil.
func LoadHFTokenizerBytes(tokenizerJSON, config []byte) (*HFTokenizer, error) {
	var tf tokenizerFile
	if err := json.Unmarshal(tokenizerJSON, &tf); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	if !strings.EqualFold(tf.Model.Type, "BPE") {
		return nil, fmt.Errorf("unsupported tokenizer model: %q", tf.Model.Type)
	}
	if len(tf.Model.Vocab) == 0 {
		return nil, errors.New("tokenizer.json has an empty vocabulary")
	}
	var cfg tokenizerConfig
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("parse tokenizer_config.json: %w", err)
		}
	}

	t := &HFTokenizer{
		ids:   make(map[string]int, len(tf.Model.Vocab)+len(tf.AddedTokens)),
		ranks: make(map[merge]int, len(tf.Model.Merges)),
	}
	if err := t.buildVocab(tf); err != nil {
		return nil, err
	}
	for _, raw := range tf.Model.Merges {
		if m, ok := parseMerge(raw); ok {
			if _, dup := t.ranks[m]; !dup {
				t.ranks[m] = len(t.ranks)
			}
		}
	}

	pattern := gpt2Split
	if pre := tf.PreTokenizer; pre != nil && pre.Type == "Sequence" {
		for _, p := range pre.Pretokenizers {
			if p.Type == "Split" && p.Pattern.Regex != "" {
				pattern = p.Pattern.Regex
				break
			}
		}
	}
	// Python-only constructs fall back to the GPT-2 split.
	if strings.Contains(pattern, "(?!") || strings.Contains(pattern, "(?i:") {
		pattern = gpt2Split
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile pre-tokenizer pattern: %w", err)
	}
	t.split = re

	t.bosID = t.lookup(string(cfg.BOS), endOfText)
	t.eosID = t.lookup(string(cfg.EOS), endOfText)
	t.unkID = t.lookup(tf.Model.UnkToken)
	t.prependBOS = cfg.AddBOS && t.bosID >= 0
	t.toRune, t.fromRune = byteAlphabet()
	t.specials = specialsLongestFirst(t.vocab)
	return t, nil
}

func (t *HFTokenizer) buildVocab(tf tokenizerFile) error {
	size := 0
	for tok, id := range tf.Model.Vocab {
		if id < 0 {
			return fmt.Errorf("negative token id %d for %q", id, tok)
		}
		t.ids[tok] = id
		size = max(size, id+1)
	}
	for _, at := range tf.AddedTokens {
		if at.ID < 0 {
			return fmt.Errorf("negative token id %d for %q", at.ID, at.Content)
		}
		t.ids[at.Content] = at.ID
		size = max(size, at.ID+1)
	}
	t.vocab = make([]string, size)
	for tok, id := range t.ids {
		t.vocab[id] = tok
	}
	return nil
}

// lookup returns the id of the first non-empty name in the vocabulary, or -1.
func (t *HFTokenizer) lookup(names ...string) int {
	for _, name := range names {
		if id, ok := t.ids[name]; ok && name != "" {
			return id
		}
	}
	return -1
}

func (t *HFTokenizer) Encode(text string) ([]int, error) {
	var out []int
	if t.prependBOS {
		out = append(out, t.bosID)
	}
	err := eachSegment(text, t.specials, func(seg string, special bool) error {
		if special {
			out = append(out, t.ids[seg])
			return nil
		}
		for _, piece := range t.split.FindAllString(seg, -1) {
			for _, sym := range t.symbols(piece) {
				id, ok := t.ids[sym]
				switch {
				case ok:
					out = append(out, id)
				case t.unkID >= 0:
					out = append(out, t.unkID)
				default:
					return fmt.Errorf("unknown token: %q", sym)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// symbols maps one pre-token to its merged BPE symbols. Results are cached.
func (t *HFTokenizer) symbols(piece string) []string {
	if v, ok := t.cache.Load(piece); ok {
		return v.([]string)
	}
	word := make([]string, len(piece))
	for i := range len(piece) {
		word[i] = string(t.toRune[piece[i]])
	}
	word = applyMerges(word, t.ranks)
	t.cache.Store(piece, word)
	return word
}

// Decode maps ids back to text. Bytes are reassembled before conversion, so
// a character split across ids decodes cleanly only once all of them are
// present.
func (t *HFTokenizer) Decode(ids []int) (string, error) {
	var b []byte
	for _, id := range ids {
		if id < 0 || id >= len(t.vocab) {
			return "", fmt.Errorf("token id out of range: %d", id)
		}
		tok := t.vocab[id]
		if isSpecialToken(tok) {
			b = append(b, tok...)
			continue
		}
		for _, r := range tok {
			if c, ok := t.fromRune[r]; ok {
				b = append(b, c)
			} else {
				b = append(b, string(r)...)
			}
		}
	}
	return string(b), nil
}

func (t *HFTokenizer) BOSID() int     { return t.bosID }
func (t *HFTokenizer) EOSID() int     { return t.eosID }
func (t *HFTokenizer) VocabSize() int { return len(t.vocab) }

// TokenString returns the vocabulary entry for id, or "" when out of range.
func (t *HFTokenizer) TokenString(id int) string {
	if id < 0 || id >= len(t.vocab) {
		return ""
	}
	return t.vocab[id]
}
