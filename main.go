// Package main implements a LINE bot that redraws users' photos as comic art
// and serves the resulting gallery.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"line-comicbot/pkg/gallery"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "line-comicbot: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	serve := newServeCmd()
	cmd := &cobra.Command{
		Use:          "line-comicbot",
		Short:        "LINE photo-to-comic bot",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	cmd.AddCommand(
		serve,
		newWorkerCmd(),
		newHashIDCmd(),
		newLookupCmd(),
	)
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and gallery HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(cmd.Context())
		},
	}
}

func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Process queued jobs from Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			return a.work(cmd.Context())
		},
	}
}

func newHashIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hashid <name>...",
		Short: "Print the HashID of stored object names",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", gallery.HashID(name), name)
			}
			return nil
		},
	}
}

func newLookupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <hashId>",
		Short: "Resolve a HashID against the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			img, err := a.store.FindByHashID(cmd.Context(), strings.ToLower(args[0]))
			if err != nil {
				return fmt.Errorf("lookup %s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", img.Name, img.URL)
			return nil
		},
	}
}
