package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/roll-call/internal/config"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a student in a course",
	Long: `Enroll a student in a course. Enrolling an already enrolled
student is a no-op.

Example:
  rollcall enroll --course 3 --student 42`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().Int64("course", 0, "Course ID (required)")
	enrollCmd.Flags().Int64("student", 0, "Student ID (required)")
	_ = enrollCmd.MarkFlagRequired("course")
	_ = enrollCmd.MarkFlagRequired("student")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	courseID := mustGetInt64(cmd, "course")
	studentID := mustGetInt64(cmd, "student")

	cfg := config.Load()
	store, pool, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := store.EnrollStudent(context.Background(), courseID, studentID); err != nil {
		return fmt.Errorf("failed to enroll student: %w", err)
	}

	fmt.Printf("Enrolled student %d in course %d\n", studentID, courseID)
	return nil
}
