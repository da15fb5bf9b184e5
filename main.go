// Copyright 2024 Matthew P. Dargan. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Nba-chat answers questions about NBA statistics from the command line.
//
// Usage:
//
//	nba-chat ask [--config file] [--data file] [--model name] [--top-k n] question...
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/matthewdargan/nba-chat/internal/app"
	"github.com/matthewdargan/nba-chat/internal/config"
	"github.com/matthewdargan/nba-chat/internal/logger"
	"github.com/matthewdargan/nba-chat/internal/player"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root := &cobra.Command{Use: "nba-chat", SilenceUsage: true}
	root.AddCommand(askCmd())
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func askCmd() *cobra.Command {
	v := config.New()
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "ask question...",
		Short: "Answer one question about the statistics table",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, cfgPath)
			if err != nil {
				return err
			}
			l, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer l.Sync()
			e, closeFn, err := app.Engine(cmd.Context(), cfg, l, nil)
			if err != nil {
				return err
			}
			defer closeFn()
			ans, err := e.Answer(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printAnswer(cmd.OutOrStdout(), ans)
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfgPath, "config", os.Getenv("NBA_CONFIG"), "configuration file")
	f.String("data", "", "statistics table (.csv or .xlsx)")
	f.String("model", "", "ollama model answering the question")
	f.Int("top-k", 0, "documents given to the model")
	_ = v.BindPFlag("data.path", f.Lookup("data"))
	_ = v.BindPFlag("ollama.model", f.Lookup("model"))
	_ = v.BindPFlag("retrieval.top_k", f.Lookup("top-k"))
	return cmd
}

func printAnswer(w io.Writer, ans string) error {
	if _, err := fmt.Fprintln(w, ans); err != nil {
		return err
	}
	if u, ok := player.ImageURL(ans); ok {
		if _, err := fmt.Fprintf(w, "Player image: %s\n", u); err != nil {
			return err
		}
	}
	return nil
}
