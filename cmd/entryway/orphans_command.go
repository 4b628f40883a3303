package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"entryway/internal/journal"
)

func newOrphansCommand(cmdCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "orphans",
		Short: "List uploaded assets left behind by failed runs",
		Long: "Failed runs never roll back completed uploads; their assets stay on the\n" +
			"remote services until someone removes them. This command lists every asset\n" +
			"the journal recorded for a run that did not reach registration.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cmdCtx.ensureConfig()
			if err != nil {
				return err
			}

			store, err := journal.Open(cfg)
			if err != nil {
				return fmt.Errorf("open journal: %w", err)
			}
			defer store.Close()

			orphans, err := store.ListOrphans(cmd.Context())
			if err != nil {
				return fmt.Errorf("list orphans: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(orphans) == 0 {
				fmt.Fprintln(out, "No orphaned assets recorded")
				return nil
			}

			rows := make([][]string, 0, len(orphans))
			for _, orphan := range orphans {
				location := orphan.ObjectPath
				if location == "" {
					location = "asset " + orphan.AssetID
				}
				rows = append(rows, []string{
					orphan.RunID,
					orphan.ContestID,
					orphan.Stage,
					location,
					orphan.CreatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Run", "Contest", "Stage", "Location", "Uploaded"}, rows))
			return nil
		},
	}
}
