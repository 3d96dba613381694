// Package tokenizer implements the byte-level BPE tokenizer used by GPT-2
// style checkpoints, loaded from a Hugging Face tokenizer.json.
package tokenizer

// Tokenizer converts between text and token ids. Implementations must be
// safe for concurrent use.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// Specials exposes the special token ids a tokenizer knows about. Ids are -1
// when absent.
type Specials interface {
	BOSID() int
	EOSID() int
}
