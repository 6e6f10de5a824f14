package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"semsearch/internal/loader"
	"semsearch/internal/logger"
)

func newLoadCmd(opts *options) *cobra.Command {
	var batchSize int
	cmd := &cobra.Command{
		Use:           "load <articles.jsonl>",
		Short:         "Replace the vector store contents with articles from a JSON-lines file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			log, err := logger.NewLogger(cfg.Logging.Env, cfg.Logging.Level)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			f, err := os.Open(filepath.Clean(args[0]))
			if err != nil {
				return err
			}
			defer f.Close()
			records, err := loader.Decode(f)
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			st, err := openStore(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer st.Close()

			if batchSize == 0 {
				batchSize = cfg.Embedder.BatchSize
			}
			key := resolveEmbedderKey(resolveAPIKey(opts.openAIKey), cfg)
			if loader.NeedsEmbedding(records) {
				if err := checkEmbedderKey(cfg, key); err != nil {
					return err
				}
			}
			embedder := newEmbedder(cfg, key, log)
			embedded, err := loader.New(embedder, st, batchSize, log).Load(ctx, records)
			if err != nil {
				return err
			}
			log.Info("load finished", zap.String("file", args[0]), zap.Int("records", len(records)))
			fmt.Fprintf(cmd.OutOrStdout(), "Loaded %d articles into the %s store (%d embedded).\n",
				len(records), cfg.VectorStore.Type, embedded)
			return nil
		},
	}
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Texts per embedding request (default from config)")
	return cmd
}
