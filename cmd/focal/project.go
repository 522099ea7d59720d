package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/focal/internal/domain/model"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage tracked burndowns",
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tracked projects and their current iteration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		summaries, err := a.burndowns.ListProjects(cmd.Context())
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, "ID\tNAME\tTRACKER\tITERATION\tNOTIFY")
		for _, s := range summaries {
			iteration := "-"
			if s.Current != nil {
				iteration = fmt.Sprintf("%d (%s..%s)", s.Current.Number, s.Current.StartOn(), s.Current.FinishOn())
			}
			_, _ = fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%t\n",
				s.Project.ID, s.Project.Name, s.Project.Tracker.ProjectID, iteration, s.Project.NotificationEnabled())
		}
		return tw.Flush()
	},
}

var projectAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Track a Pivotal Tracker project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		params := model.ProjectParams{}
		params.Name, _ = flags.GetString("name")
		params.Tracker.ProjectID, _ = flags.GetInt64("tracker-project")
		params.Tracker.Token, _ = flags.GetString("tracker-token")
		params.Chat.Subdomain, _ = flags.GetString("campfire-subdomain")
		params.Chat.Token, _ = flags.GetString("campfire-token")
		params.Chat.RoomID, _ = flags.GetString("campfire-room")

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		project, err := a.burndowns.CreateProject(cmd.Context(), params)
		if err != nil {
			return err
		}

		printf(cmd, "Added project %d (%s)\n", project.ID, project.Name)
		if !project.NotificationEnabled() {
			printf(cmd, "Campfire settings incomplete, new iterations will not be announced.\n")
		}
		return nil
	},
}

var projectRemoveCmd = &cobra.Command{
	Use:   "remove <project-id>",
	Short: "Stop tracking a project and delete its history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[0])
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		if err := a.burndowns.DeleteProject(cmd.Context(), id); err != nil {
			return err
		}

		printf(cmd, "Removed project %d\n", id)
		return nil
	},
}

func init() {
	projectAddCmd.Flags().String("name", "", "Display name (required)")
	projectAddCmd.Flags().Int64("tracker-project", 0, "Pivotal Tracker project id (required)")
	projectAddCmd.Flags().String("tracker-token", "", "Pivotal Tracker API token (required)")
	projectAddCmd.Flags().String("campfire-subdomain", "", "Campfire account subdomain")
	projectAddCmd.Flags().String("campfire-token", "", "Campfire API token")
	projectAddCmd.Flags().String("campfire-room", "", "Campfire room id")
	_ = projectAddCmd.MarkFlagRequired("name")
	_ = projectAddCmd.MarkFlagRequired("tracker-project")
	_ = projectAddCmd.MarkFlagRequired("tracker-token")

	projectCmd.AddCommand(projectListCmd)
	projectCmd.AddCommand(projectAddCmd)
	projectCmd.AddCommand(projectRemoveCmd)
}
