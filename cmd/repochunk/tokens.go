package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/repochunk/internal/tokenizer"
)

// tokensCmd represents the tokens command
var tokensCmd = &cobra.Command{
	Use:   "tokens [file]",
	Short: "Count the tokens of a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTokens,
}

var tokensModel string

func init() {
	rootCmd.AddCommand(tokensCmd)
	tokensCmd.Flags().StringVar(&tokensModel, "model", "", "model name (default from configuration)")
}

func runTokens(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	model := cfg.Model
	if tokensModel != "" {
		model = tokensModel
	}

	var data []byte
	if len(args) == 1 {
		data, err = os.ReadFile(args[0])
	} else {
		data, err = io.ReadAll(cmd.InOrStdin())
	}
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	counter, err := tokenizer.New(cfg.TokenizerOptions())
	if err != nil {
		return fmt.Errorf("failed to initialize tokenizer: %w", err)
	}
	tokens, err := counter.CountTokens(string(data), model)
	if err != nil {
		return err
	}

	limit := cfg.ModelLimits().Limit(model)
	fmt.Fprintf(cmd.OutOrStdout(), "%d tokens (%s, %.1f%% of %d)\n",
		tokens, model, 100*float64(tokens)/float64(limit), limit)
	if stats := counter.Stats(); stats.Fallbacks > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "note: %s estimate used, precise encoding unavailable\n", counter.Method())
	}
	return nil
}
