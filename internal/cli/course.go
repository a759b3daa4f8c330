package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-caddy/pkg/course"
)

func newCourseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "course",
		Short: "Look up course information",
	}
	cmd.AddCommand(newCourseSearchCmd(a), newCourseHoleCmd(a))
	return cmd
}

func newCourseSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search golfcourseapi.com for courses",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			courses, err := a.golfAPI().SearchCourses(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(courses) == 0 {
				fmt.Fprintln(out, "No courses found.")
				return nil
			}
			for i := range courses {
				fmt.Fprintf(out, "[%d] %s\n\n", courses[i].ID, course.FormatCourseSummary(&courses[i]))
			}
			return nil
		},
	}
}

func newCourseHoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "hole <number>",
		Short: "Ask the course knowledge base about a hole",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hole, err := strconv.Atoi(args[0])
			if err != nil || hole < 1 || hole > 18 {
				return fmt.Errorf("hole must be a number from 1 to 18, got %q", args[0])
			}
			kb, err := a.knowledge(cmd.Context())
			if err != nil {
				return err
			}
			if kb == nil {
				return errors.New("aws.kb_id is not configured")
			}
			answer, err := kb.HoleInfo(cmd.Context(), hole)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, answer.Response)
			for _, src := range answer.Sources {
				if src.S3Location.URI != "" {
					fmt.Fprintf(out, "  source: %s\n", src.S3Location.URI)
				}
			}
			return nil
		},
	}
}
