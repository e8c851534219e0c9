package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/csheth/papergraph/internal/chat"
	"github.com/csheth/papergraph/internal/localstore"
)

func newHistoryCmd(a *app) *cobra.Command {
	history := &cobra.Command{
		Use:   "history",
		Short: "Work with the locally cached conversation",
	}

	var output string
	export := &cobra.Command{
		Use:   "export",
		Short: "Print the cached conversation as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}
			return a.exportHistory(w)
		},
	}
	export.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")

	history.AddCommand(export)
	return history
}

func (a *app) exportHistory(w io.Writer) error {
	logger, closer, err := a.logger()
	if err != nil {
		return err
	}
	defer closer.Close()

	store, err := localstore.Open(localstore.Config{
		Backend: a.cfg.Cache.Backend,
		Dir:     a.cfg.Cache.Dir,
		Logger:  logger.WithPrefix("store"),
	})
	if err != nil {
		return fmt.Errorf("open local cache: %w", err)
	}
	defer store.Close()

	messages := []chat.Message{}
	raw, err := store.Get(chat.StorageKey)
	switch {
	case errors.Is(err, localstore.ErrNotFound):
	case err != nil:
		return fmt.Errorf("read cached conversation: %w", err)
	default:
		if err := json.Unmarshal(raw, &messages); err != nil {
			return fmt.Errorf("decode cached conversation: %w", err)
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(messages)
}
