package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/internal/app"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/internal/config"
	"github.com/Pikacnu/simple-lyrics-extraction-and-subtitle-website/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	listenAddr string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "lyrics-server",
	Short: "Serve time-aligned lyrics for YouTube tracks over WebSocket",
	Long: `lyrics-server downloads the audio of a YouTube (Music) link, finds its lyrics
on a chain of lyrics sites, aligns them to the audio with a speech recognizer and
streams the result to the browser player over /api/ws. When no site has the
lyrics the audio itself is transcribed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file (default $XDG_CONFIG_HOME/lyrics-server/config.toml)")
	rootCmd.Flags().StringVarP(&listenAddr, "listen", "l", "", "listen address, overrides app.listen_addr")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if listenAddr != "" {
		cfg.App.ListenAddr = listenAddr
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, verbose); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.Run(ctx)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
