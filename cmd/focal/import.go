package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/focal/internal/domain/model"
	"github.com/ericfisherdev/focal/internal/domain/port/driven"
)

var importCmd = &cobra.Command{
	Use:   "import [project-id]",
	Short: "Import today's burndown now",
	Long: `Import the current iteration of one project, or of every project with --all.

Examples:
  focal import 3        # Force update project 3
  focal import --all    # Run the scheduled batch once`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		if all == (len(args) == 1) {
			return errors.New("give a project id or --all")
		}

		a, err := openApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close(cmd.Context())

		if all {
			results, err := a.imports.ImportAll(cmd.Context())
			if err != nil {
				return err
			}

			var failed int
			for _, r := range results {
				switch {
				case r.Err == nil:
					printf(cmd, "%-4d %-24s %s\n", r.ProjectID, r.ProjectName, describeOutcome(r.Outcome))
				case errors.Is(r.Err, driven.ErrNotify):
					printf(cmd, "%-4d %-24s %s (%v)\n", r.ProjectID, r.ProjectName, describeOutcome(r.Outcome), r.Err)
				default:
					failed++
					printf(cmd, "%-4d %-24s failed: %v\n", r.ProjectID, r.ProjectName, r.Err)
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d imports failed", failed, len(results))
			}
			return nil
		}

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid project id %q", args[0])
		}

		outcome, err := a.imports.ForceUpdate(cmd.Context(), id)
		if err != nil && !errors.Is(err, driven.ErrNotify) {
			return err
		}
		printf(cmd, "%s\n", describeOutcome(outcome))
		return err
	},
}

func init() {
	importCmd.Flags().Bool("all", false, "Import every tracked project")
}

func describeOutcome(o model.ImportOutcome) string {
	iteration := "existing"
	if o.IterationCreated {
		iteration = "new"
	}

	metric := "updated"
	if o.MetricCreated {
		metric = "created"
	}

	s := fmt.Sprintf("iteration %d (%s), metric for %s %s", o.IterationNumber, iteration, o.CapturedOn, metric)
	if o.Notified {
		s += ", room notified"
	}
	return s
}
