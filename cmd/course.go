package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/roll-call/internal/config"
)

var courseCmd = &cobra.Command{
	Use:   "course",
	Short: "Manage courses",
}

var courseAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a course owned by a teacher",
	Long: `Create a course. The owning teacher is referenced by ID.

Example:
  rollcall course add "Algorithms" --teacher 1 --code ALG-101`,
	Args: cobra.ExactArgs(1),
	RunE: runCourseAdd,
}

var courseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the courses of a teacher",
	RunE:  runCourseList,
}

func init() {
	rootCmd.AddCommand(courseCmd)
	courseCmd.AddCommand(courseAddCmd)
	courseCmd.AddCommand(courseListCmd)

	courseAddCmd.Flags().Int64("teacher", 0, "Owning teacher ID (required)")
	courseAddCmd.Flags().String("code", "", "Course code, e.g. ALG-101")
	_ = courseAddCmd.MarkFlagRequired("teacher")

	courseListCmd.Flags().Int64("teacher", 0, "Teacher ID (required)")
	_ = courseListCmd.MarkFlagRequired("teacher")
}

func runCourseAdd(cmd *cobra.Command, args []string) error {
	name := args[0]
	teacherID := mustGetInt64(cmd, "teacher")
	code := mustGetString(cmd, "code")

	cfg := config.Load()
	store, pool, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	id, err := store.CreateCourse(context.Background(), teacherID, name, code)
	if err != nil {
		return fmt.Errorf("failed to create course: %w", err)
	}

	fmt.Printf("Created course %s (ID %d)\n", name, id)
	return nil
}

func runCourseList(cmd *cobra.Command, args []string) error {
	teacherID := mustGetInt64(cmd, "teacher")

	cfg := config.Load()
	store, pool, err := connectStore(cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	courses, err := store.ListCourses(context.Background(), teacherID)
	if err != nil {
		return fmt.Errorf("failed to list courses: %w", err)
	}

	if len(courses) == 0 {
		fmt.Println("No courses found")
		return nil
	}
	for _, c := range courses {
		fmt.Printf("%d\t%s\t%s\n", c.ID, c.Code, c.Name)
	}
	return nil
}
