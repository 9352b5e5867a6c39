// cmd/main.go is the application entry point.
// It loads configuration, wires every layer through internal/app and
// exposes the HTTP server plus maintenance commands.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Shivanand-hulikatti/advisor-match/internal/app"
	"github.com/Shivanand-hulikatti/advisor-match/internal/config"
	"github.com/Shivanand-hulikatti/advisor-match/internal/extract"
	"github.com/Shivanand-hulikatti/advisor-match/internal/handler"
	"github.com/Shivanand-hulikatti/advisor-match/internal/logger"
	"github.com/Shivanand-hulikatti/advisor-match/internal/model"
)

var (
	configPath string
	envFile    string

	reindexForce bool

	matchFile     string
	matchTopK     int
	matchMinScore float64
	matchJSON     bool
)

var rootCmd = &cobra.Command{
	Use:           "advisor-match",
	Short:         "Match students to research supervisors",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Embed stale profiles and rebuild the profile index",
	Args:  cobra.NoArgs,
	RunE:  runReindex,
}

var matchCmd = &cobra.Command{
	Use:   "match [text]",
	Short: "Rank profiles against text or a document file",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runMatch,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env", ".env", "dotenv file loaded before the config")

	reindexCmd.Flags().BoolVar(&reindexForce, "force", false, "re-embed every complete profile")

	matchCmd.Flags().StringVarP(&matchFile, "file", "f", "", "pdf, docx or txt file to match")
	matchCmd.Flags().IntVarP(&matchTopK, "top-k", "k", 0, "maximum number of results (0 uses the configured default)")
	matchCmd.Flags().Float64Var(&matchMinScore, "min-score", -1, "drop results scoring below this value")
	matchCmd.Flags().BoolVar(&matchJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(serveCmd, reindexCmd, matchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// setup loads the environment and config, then builds the app with its
// profile index populated.
func setup(ctx context.Context) (*app.App, *logger.Logger, error) {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, nil, fmt.Errorf("load %s: %w", envFile, err)
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, nil, err
	}

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()

	if _, err := a.Profiles.Reindex(ctx, false); err != nil {
		log.Error("initial reindex failed; serving with a partial index", "error", err)
	}

	srv := &http.Server{
		Addr:         ":" + a.Config.Port,
		Handler:      handler.NewRouter(a.Handler(a.Config.Storage.MaxUploadBytes), log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			a.Close(context.Background())
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	a.Close(shutdownCtx)
	log.Info("server stopped")
	return nil
}

func runReindex(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close(ctx)

	n, err := a.Profiles.Reindex(ctx, reindexForce)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	cmd.Printf("Embedded %d profiles; %d indexed.\n", n, a.Index.Len())
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	text, err := matchInput(args)
	if err != nil {
		return err
	}

	a, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer log.Sync()
	defer a.Close(ctx)

	if _, err := a.Profiles.Reindex(ctx, false); err != nil {
		return fmt.Errorf("load profiles: %w", err)
	}

	req := model.MatchRequest{TopK: matchTopK}
	if cmd.Flags().Changed("min-score") {
		req.MinScore = &matchMinScore
	}
	views, err := a.Matches.MatchText(ctx, text, req)
	if err != nil {
		return fmt.Errorf("match failed: %w", err)
	}

	if matchJSON {
		data, err := json.MarshalIndent(views, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	if len(views) == 0 {
		cmd.Println("No matching profiles.")
		return nil
	}
	for _, v := range views {
		cmd.Printf("[%d] %s, %s (%s)  %.2f%%\n", v.Rank, v.Name, v.Title, v.Department, v.Percentage)
		if len(v.Topics) > 0 {
			cmd.Printf("    %s\n", strings.Join(v.Topics, ", "))
		}
	}
	return nil
}

// matchInput returns the positional text or the extracted content of --file.
func matchInput(args []string) (string, error) {
	switch {
	case matchFile != "" && len(args) > 0:
		return "", errors.New("pass either text or --file, not both")
	case matchFile != "":
		content, err := os.ReadFile(matchFile)
		if err != nil {
			return "", err
		}
		return extract.Extract(content, extract.KindFromFilename(matchFile))
	case len(args) == 1:
		return args[0], nil
	}
	return "", errors.New("nothing to match: pass text or --file")
}
