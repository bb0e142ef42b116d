package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/kirillkom/meeting-minutes/internal/core/domain"
)

func NewListCmd(deps *Dependencies) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List meetings, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			meetings, err := deps.Meetings.ListMeetings(cmd.Context(), userID)
			if err != nil {
				return err
			}
			if len(meetings) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No meetings found")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tSTARTED\tCLIENT\tPROJECT")
			for _, m := range meetings {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					m.ID, m.State, m.StartedAt.UTC().Format(time.RFC3339),
					m.Identification.Client, m.Identification.Project)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&userID, "user", "default", "owner of the meetings")
	return cmd
}

func NewShowCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "show <meeting-id>",
		Short: "Print a meeting and its minutes as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meeting, err := deps.Meetings.GetMeeting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			minutes, err := deps.Meetings.GetMinutes(cmd.Context(), args[0])
			if err != nil && !errors.Is(err, domain.ErrMinutesNotFound) {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Meeting *domain.Meeting         `json:"meeting"`
				Minutes *domain.MinutesDocument `json:"minutes"`
			}{Meeting: meeting, Minutes: minutes})
		},
	}
}

func NewTranscriptCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "transcript <meeting-id>",
		Short: "Print the transcript as [speaker]: text lines",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			segments, err := deps.Meetings.Transcript(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, seg := range segments {
				fmt.Fprintf(cmd.OutOrStdout(), "[%s]: %s\n", seg.Speaker, seg.Text)
			}
			return nil
		},
	}
}

func NewTasksCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "tasks <meeting-id>",
		Short: "List the persisted tasks of a meeting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tasks, err := deps.Meetings.ListTasks(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tDUE\tOWNER\tDESCRIPTION")
			for _, t := range tasks {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.TaskID, t.State, t.DueDate, t.Owner, t.Description)
			}
			return w.Flush()
		},
	}
}

func NewExportCmd(deps *Dependencies) *cobra.Command {
	var outPath string
	cmd := &cobra.Command{
		Use:   "export <meeting-id>",
		Short: "Write the minutes spreadsheet to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := deps.Meetings.ExportMinutes(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			path := outPath
			if path == "" {
				path = args[0] + ".xlsx"
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d bytes)\n", path, len(data))
			return nil
		},
	}
	cmd.Flags().StringVarP(&outPath, "output", "o", "", "destination file (default <meeting-id>.xlsx)")
	return cmd
}

func NewEndCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "end <meeting-id>",
		Short: "Mark a meeting as ended",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			meeting, err := deps.Meetings.EndMeeting(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Meeting %s is %s\n", meeting.ID, meeting.State)
			return nil
		},
	}
}

// NewReprocessCmd publishes a regeneration request; the worker clears the tasks and
// regenerates.
func NewReprocessCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess <meeting-id>",
		Short: "Queue a full regeneration of the minutes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := deps.Meetings.RequestReprocess(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Reprocess queued for %s\n", args[0])
			return nil
		},
	}
}
