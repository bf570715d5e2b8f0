package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/roll-call/internal/config"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/ledger"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Inspect attendance sessions",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Open an attendance session for a course",
	Long: `Open an attendance session. Frames are normally streamed to the
session through the web API of a running server; starting a session
from the CLI is mostly useful for manual attendance corrections.`,
	RunE: runSessionStart,
}

var sessionEndCmd = &cobra.Command{
	Use:   "end <session-id>",
	Short: "Close an attendance session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionEnd,
}

var sessionExportCmd = &cobra.Command{
	Use:   "export <session-id>",
	Short: "Print the attendance summary of a session",
	Long: `Print one line per person seen during a session, ordered by
first appearance. Sessions are normally started and ended through the
web API; export works for both live and closed sessions.`,
	Args: cobra.ExactArgs(1),
	RunE: runSessionExport,
}

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionEndCmd)
	sessionCmd.AddCommand(sessionExportCmd)

	sessionStartCmd.Flags().Int64("course", 0, "Course ID (required)")
	_ = sessionStartCmd.MarkFlagRequired("course")
}

func runSessionStart(cmd *cobra.Command, args []string) error {
	courseID := mustGetInt64(cmd, "course")

	cfg := config.Load()
	store, pool, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	course, err := store.GetCourse(ctx, courseID)
	if err != nil {
		return fmt.Errorf("failed to load course: %w", err)
	}
	if course == nil {
		return fmt.Errorf("course %d not found", courseID)
	}

	id, err := ledger.New(store).StartSession(ctx, courseID)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	fmt.Printf("Started session %d for course %s\n", id, course.Name)
	return nil
}

func runSessionEnd(cmd *cobra.Command, args []string) error {
	sessionID, err := parseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid session ID %q: %w", args[0], err)
	}

	cfg := config.Load()
	store, pool, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := ledger.New(store).EndSession(context.Background(), sessionID); err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}

	fmt.Printf("Ended session %d\n", sessionID)
	return nil
}

func runSessionExport(cmd *cobra.Command, args []string) error {
	sessionID, err := parseID(args[0])
	if err != nil {
		return fmt.Errorf("invalid session ID %q: %w", args[0], err)
	}

	cfg := config.Load()
	store, pool, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	ctx := context.Background()
	session, err := store.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return fmt.Errorf("session %d not found", sessionID)
	}

	rows, err := store.ExportSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to export session: %w", err)
	}

	state := "live"
	if session.Closed() {
		state = "ended"
	}
	fmt.Printf("Session %d (course %d, %s): %d present\n",
		session.ID, session.CourseID, state, len(rows))

	for _, row := range rows {
		name := exportDisplayName(ctx, store, row)
		fmt.Printf("%s\t%s\t%s - %s\n",
			row.PersonType, name,
			row.FirstSeen.Format("15:04:05"),
			row.LastSeen.Format("15:04:05"))
	}
	return nil
}

// exportDisplayName tolerates people deleted after the session was recorded.
func exportDisplayName(ctx context.Context, store database.Store, row database.AttendanceRow) string {
	switch row.PersonType {
	case database.PersonStudent:
		if s, err := store.GetStudent(ctx, row.PersonID); err == nil && s != nil {
			return s.FullName
		}
	case database.PersonTeacher:
		if t, err := store.GetTeacher(ctx, row.PersonID); err == nil && t != nil {
			return t.FullName
		}
	}
	return fmt.Sprintf("%s #%d", row.PersonType, row.PersonID)
}
