package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/roll-call/internal/config"
)

var studentCmd = &cobra.Command{
	Use:   "student",
	Short: "Manage students",
}

var studentAddCmd = &cobra.Command{
	Use:   "add <full-name>",
	Short: "Create or update a student",
	Long: `Create a student. When a student with the same code already
exists, the name is updated instead.

Example:
  rollcall student add "Jana Veselá" --code S2024001`,
	Args: cobra.ExactArgs(1),
	RunE: runStudentAdd,
}

var studentSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search students by name",
	Args:  cobra.ExactArgs(1),
	RunE:  runStudentSearch,
}

func init() {
	rootCmd.AddCommand(studentCmd)
	studentCmd.AddCommand(studentAddCmd)
	studentCmd.AddCommand(studentSearchCmd)

	studentAddCmd.Flags().String("code", "", "External student code (required)")
	_ = studentAddCmd.MarkFlagRequired("code")
}

func runStudentAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	code := mustGetString(cmd, "code")

	cfg := config.Load()
	store, pool, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	id, err := store.UpsertStudent(context.Background(), name, code)
	if err != nil {
		return fmt.Errorf("failed to upsert student: %w", err)
	}

	fmt.Printf("Student %s (ID %d)\n", name, id)
	return nil
}

func runStudentSearch(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store, pool, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	students, err := store.SearchStudents(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to search students: %w", err)
	}

	if len(students) == 0 {
		fmt.Println("No students found")
		return nil
	}
	for _, s := range students {
		fmt.Printf("%d\t%s\t%s\n", s.ID, s.StudentCode, s.FullName)
	}
	return nil
}
