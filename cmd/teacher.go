package cmd

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kozaktomas/roll-call/internal/config"
)

var teacherCmd = &cobra.Command{
	Use:   "teacher",
	Short: "Manage teacher accounts",
}

var teacherAddCmd = &cobra.Command{
	Use:   "add <username> <full-name>",
	Short: "Create a teacher account",
	Long: `Create a teacher account for the web UI and the API.

The password is read from the TEACHER_PASSWORD environment variable, or
prompted for interactively when the variable is not set.

Example:
  rollcall teacher add novak "Jan Novák"`,
	Args: cobra.ExactArgs(2),
	RunE: runTeacherAdd,
}

func init() {
	rootCmd.AddCommand(teacherCmd)
	teacherCmd.AddCommand(teacherAddCmd)
}

func runTeacherAdd(cmd *cobra.Command, args []string) error {
	username, fullName := args[0], args[1]

	password := os.Getenv("TEACHER_PASSWORD")
	if password == "" {
		fmt.Print("Password: ")
		raw, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		password = string(raw)
	}
	if password == "" {
		return fmt.Errorf("password must not be empty")
	}

	cfg := config.Load()
	store, pool, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	id, err := store.CreateTeacher(context.Background(), username, password, fullName)
	if err != nil {
		return fmt.Errorf("failed to create teacher: %w", err)
	}

	fmt.Printf("Created teacher %s (ID %d)\n", username, id)
	return nil
}
