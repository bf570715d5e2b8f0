package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database/postgres"
	"github.com/kozaktomas/roll-call/internal/engine"
	"github.com/kozaktomas/roll-call/internal/faceindex"
	"github.com/kozaktomas/roll-call/internal/imgstore"
	"github.com/kozaktomas/roll-call/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the attendance server",
	Long: `Start the Roll Call web server.
The server accepts camera frames for open sessions, matches detected faces
against enrolled embeddings, and exposes the attendance API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	if cfg.Database.URL == "" {
		return errors.New("DATABASE_URL environment variable is required")
	}

	fmt.Println("Connecting to PostgreSQL database...")
	store, pool, err := postgres.Initialize(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	defer pool.Close()

	fmt.Println("Building face index from stored embeddings...")
	index := faceindex.New(cfg.Recognition.EmbeddingDim)
	skipped, err := index.Rebuild(context.Background(), store)
	if err != nil {
		return fmt.Errorf("failed to build face index: %w", err)
	}
	fmt.Printf("Face index ready with %d embeddings", index.Len())
	if skipped > 0 {
		fmt.Printf(" (%d rows skipped, wrong dimension)", skipped)
	}
	fmt.Println()

	images, err := imgstore.New(cfg.Images.Dir)
	if err != nil {
		return fmt.Errorf("failed to prepare image directory: %w", err)
	}

	eng := engine.NewHTTPEngine(cfg.Engine)

	server := web.NewServer(cfg, store, index, eng, images)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Roll Call server on %s\n", cfg.Web.Addr)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
