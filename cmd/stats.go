package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/roll-call/internal/config"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show database statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	_, pool, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	counts := []struct {
		label string
		query string
	}{
		{"Teachers", "SELECT COUNT(*) FROM teachers"},
		{"Courses", "SELECT COUNT(*) FROM courses"},
		{"Students", "SELECT COUNT(*) FROM students"},
		{"Enrollments", "SELECT COUNT(*) FROM enrollments"},
		{"Face embeddings", "SELECT COUNT(*) FROM faces"},
		{"Sessions", "SELECT COUNT(*) FROM sessions"},
		{"Open sessions", "SELECT COUNT(*) FROM sessions WHERE ended_at IS NULL"},
		{"Attendance rows", "SELECT COUNT(*) FROM attendance"},
		{"Events", "SELECT COUNT(*) FROM events"},
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, c := range counts {
		var n int64
		if err := pool.QueryRow(ctx, c.query).Scan(&n); err != nil {
			return fmt.Errorf("failed to count %s: %w", c.label, err)
		}
		fmt.Fprintf(w, "%s:\t%d\n", c.label, n)
	}
	return w.Flush()
}
