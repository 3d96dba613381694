package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/streamgen/internal/model"
	"github.com/samcharles93/streamgen/internal/safetensors"
	"github.com/samcharles93/streamgen/internal/tokenizer"
)

type inspectOptions struct {
	tensors      bool
	tensorLimit  int
	tensorFilter string
	vocab        bool
	vocabLimit   int
}

func inspectCmd() *cli.Command {
	var o inspectOptions

	return &cli.Command{
		Name:  "inspect",
		Usage: "Summarise a checkpoint directory without loading the weights",
		Flags: append(ckpt.flags(),
			&cli.BoolFlag{Name: "tensors", Usage: "list tensors", Destination: &o.tensors},
			&cli.IntFlag{Name: "tensors-limit", Usage: "limit tensor listing (0 = no limit)", Value: 50, Destination: &o.tensorLimit},
			&cli.StringFlag{Name: "tensor-filter", Usage: "substring filter for tensor listing", Destination: &o.tensorFilter},
			&cli.BoolFlag{Name: "vocab", Usage: "list vocab entries", Destination: &o.vocab},
			&cli.IntFlag{Name: "vocab-limit", Usage: "limit vocab listing (0 = no limit)", Value: 50, Destination: &o.vocabLimit},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			ckpt.applyConfig(c, fileConfig)
			dir, err := ckpt.resolve()
			if err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			if err := inspectCheckpoint(os.Stdout, dir, o); err != nil {
				return cli.Exit("error: "+err.Error(), 1)
			}
			return nil
		},
	}
}

func inspectCheckpoint(w io.Writer, dir string, o inspectOptions) error {
	cfg, err := model.LoadConfig(file(dir, ckpt.hfConfig, "config.json"))
	if err != nil {
		return err
	}

	st, err := safetensors.Open(filepath.Join(dir, "model.safetensors"))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	printHeader(w, "Checkpoint")
	printKV(w, "Path", dir)
	printKV(w, "Architecture", cfg.ModelType)
	printKV(w, "Layers", fmt.Sprint(cfg.NLayer))
	printKV(w, "Heads", fmt.Sprintf("%d (head dim %d)", cfg.NHead, cfg.HeadDim()))
	printKV(w, "Embedding", fmt.Sprint(cfg.NEmbd))
	printKV(w, "MLP width", fmt.Sprint(cfg.InnerDim()))
	printKV(w, "Context", fmt.Sprint(cfg.NPositions))
	printKV(w, "Vocab size", humanize.Comma(int64(cfg.VocabSize)))
	printKV(w, "Activation", cfg.Activation)

	names := st.Names()
	var params int64
	dtypes := map[string]int{}
	for _, name := range names {
		info, _ := st.Tensor(name)
		n := int64(1)
		for _, d := range info.Shape {
			n *= int64(d)
		}
		params += n
		dtypes[info.DType]++
	}

	printHeader(w, "Weights")
	printKV(w, "Tensor data", humanize.IBytes(uint64(st.Size())))
	printKV(w, "Tensors", fmt.Sprint(len(names)))
	printKV(w, "Parameters", fmt.Sprintf("%s (%s)", humanize.Comma(params), humanize.SIWithDigits(float64(params), 1, "")))
	printKV(w, "DTypes", formatCounts(dtypes))

	if o.tensors {
		printHeader(w, "Tensors")
		shown := 0
		for _, name := range names {
			if o.tensorFilter != "" && !strings.Contains(name, o.tensorFilter) {
				continue
			}
			if o.tensorLimit > 0 && shown >= o.tensorLimit {
				_, _ = fmt.Fprintf(w, "... (%d shown)\n", shown)
				break
			}
			info, _ := st.Tensor(name)
			_, _ = fmt.Fprintf(w, "%-40s %-5s %v %s\n", name, info.DType, info.Shape, humanize.IBytes(uint64(info.End-info.Start)))
			shown++
		}
	}

	tok, err := tokenizer.LoadHFTokenizer(
		file(dir, ckpt.tokenizerJSON, "tokenizer.json"),
		file(dir, ckpt.tokenizerConfig, "tokenizer_config.json"),
	)
	if err != nil {
		return fmt.Errorf("load tokenizer: %w", err)
	}

	printHeader(w, "Tokenizer")
	printKV(w, "Vocab size", humanize.Comma(int64(tok.VocabSize())))
	printKV(w, "BOS", tokenLabel(tok, tok.BOSID()))
	printKV(w, "EOS", tokenLabel(tok, tok.EOSID()))

	if o.vocab {
		printHeader(w, "Vocab")
		for id := 0; id < tok.VocabSize(); id++ {
			if o.vocabLimit > 0 && id >= o.vocabLimit {
				_, _ = fmt.Fprintf(w, "... (%d shown of %d)\n", id, tok.VocabSize())
				break
			}
			_, _ = fmt.Fprintf(w, "%6d  %q\n", id, tok.TokenString(id))
		}
	}
	return nil
}

func tokenLabel(tok *tokenizer.HFTokenizer, id int) string {
	if id < 0 {
		return "(none)"
	}
	return fmt.Sprintf("%d %q", id, tok.TokenString(id))
}

func formatCounts(m map[string]int) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, m[k])
	}
	return strings.Join(parts, " ")
}

func printHeader(w io.Writer, title string) {
	line := strings.Repeat("-", 48)
	_, _ = fmt.Fprintf(w, "\n%s\n--- %s ---\n%s\n", line, title, line)
}

func printKV(w io.Writer, label, value string) {
	_, _ = fmt.Fprintf(w, "%-24s %s\n", label+":", value)
}
