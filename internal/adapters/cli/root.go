package cli

import (
	"github.com/spf13/cobra"

	"github.com/kirillkom/meeting-minutes/internal/core/ports"
)

type Dependencies struct {
	Meetings ports.MeetingService
}

// NewRootCmd builds the operator command tree. Every command goes through the same
// MeetingService the HTTP API uses.
func NewRootCmd(deps *Dependencies) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "minutesctl",
		Short:         "Inspect meetings and their minutes",
		Long:          "Operator tool for the meeting minutes service: list meetings, read transcripts and minutes, export spreadsheets and queue reprocessing.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(NewListCmd(deps))
	rootCmd.AddCommand(NewShowCmd(deps))
	rootCmd.AddCommand(NewTranscriptCmd(deps))
	rootCmd.AddCommand(NewTasksCmd(deps))
	rootCmd.AddCommand(NewExportCmd(deps))
	rootCmd.AddCommand(NewEndCmd(deps))
	rootCmd.AddCommand(NewReprocessCmd(deps))

	return rootCmd
}
