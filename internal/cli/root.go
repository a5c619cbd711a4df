// Package cli defines the cobra commands for the companion binary.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scrypster/companion/internal/config"
	"github.com/scrypster/companion/internal/connections"
	"github.com/scrypster/companion/internal/engine"
	"github.com/scrypster/companion/internal/llm"
	"github.com/scrypster/companion/internal/storage"
)

var version = "dev" // set via ldflags at build time

// options are the persistent flags shared by every command.
type options struct {
	configPath string
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "companion",
		Short: "An emotionally aware chat companion",
		Long: `companion runs a chat companion that remembers your conversations,
notices how you feel, and can wander off on a text adventure with you.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (environment variables override it)")

	root.AddCommand(
		newServeCmd(opts),
		newSayCmd(opts),
		newMemoryCmd(opts),
		newClassifyCmd(),
		newRollCmd(),
		newBackupCmd(opts),
		newRestoreCmd(opts),
	)
	return root
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (o *options) load() (*config.Config, error) {
	return config.Load(o.configPath)
}

// openEngine opens the configured store and builds an engine over it.
// The caller closes the returned store.
func openEngine(ctx context.Context, cfg *config.Config) (*engine.Engine, storage.Store, error) {
	store, err := connections.Open(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("opening store: %w", err)
	}

	ecfg := engine.DefaultConfig()
	ecfg.SuggestionProbability = cfg.Companion.SuggestionProbability
	ecfg.ThoughtProbability = cfg.Companion.ThoughtProbability
	ecfg.Rand = newRand(cfg.Companion.Seed)

	if cfg.LLM.Enabled() {
		client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAIAPIKey,
			Model:   cfg.LLM.OpenAIModel,
			BaseURL: cfg.LLM.OpenAIBaseURL,
		})
		if err != nil {
			_ = store.Close()
			return nil, nil, fmt.Errorf("configuring language model: %w", err)
		}
		ecfg.Generator = client
	}

	eng, err := engine.New(store, ecfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return eng, store, nil
}

// newRand returns a PCG source seeded with seed, or from the clock when
// seed is zero.
func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
