package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	goutils "github.com/jkaninda/go-utils"
)

var (
	workspacesConfigPath string
	workspacesAll        bool
	purgeOlderThan       time.Duration
)

var workspacesCmd = &cobra.Command{
	Use:   "workspaces",
	Short: "Inspect and remove workspaces",
}

var workspacesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workspaces",
	RunE:  runWorkspacesList,
}

var workspacesDeleteCmd = &cobra.Command{
	Use:   "delete <workspace-id>",
	Short: "Delete a workspace and all of its contents",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkspacesDelete,
}

var workspacesPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete workspaces older than a cutoff (requires the ledger)",
	RunE:  runWorkspacesPurge,
}

func init() {
	workspacesCmd.PersistentFlags().StringVar(&workspacesConfigPath, "config", "", "path to config file")
	workspacesListCmd.Flags().BoolVar(&workspacesAll, "all", false, "include deleted workspaces from the ledger")
	workspacesPurgeCmd.Flags().DurationVar(&purgeOlderThan, "older-than", 168*time.Hour, "age cutoff (e.g. 72h)")
	workspacesCmd.AddCommand(workspacesListCmd, workspacesDeleteCmd, workspacesPurgeCmd)
}

func runWorkspacesList(_ *cobra.Command, _ []string) error {
	sc, err := initFromFlags()
	if err != nil {
		return err
	}
	defer sc.Cleanup()
	ctx := context.Background()

	records, err := sc.Workspaces.List(ctx)
	if err != nil {
		return err
	}
	if workspacesAll && sc.Store != nil {
		records, err = sc.Store.List(ctx, true)
		if err != nil {
			return err
		}
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROJECT\tCREATED\tDELETED")
	for _, rec := range records {
		deleted := "-"
		if rec.DeletedAt != nil {
			deleted = rec.DeletedAt.Format(time.RFC3339)
		}
		created := "-"
		if !rec.CreatedAt.IsZero() {
			created = rec.CreatedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rec.ID, rec.ProjectName, created, deleted)
	}
	return w.Flush()
}

func runWorkspacesDelete(_ *cobra.Command, args []string) error {
	sc, err := initFromFlags()
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	if err := sc.Workspaces.Delete(context.Background(), args[0]); err != nil {
		return err
	}
	fmt.Printf("workspace %s deleted\n", args[0])
	return nil
}

func runWorkspacesPurge(_ *cobra.Command, _ []string) error {
	sc, err := initFromFlags()
	if err != nil {
		return err
	}
	defer sc.Cleanup()

	if sc.Store == nil {
		return fmt.Errorf("purge requires the workspace ledger (configure storage)")
	}
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-purgeOlderThan)

	expired, err := sc.Store.ListOlderThan(ctx, cutoff)
	if err != nil {
		return err
	}
	removed := 0
	for _, rec := range expired {
		if err := sc.Workspaces.Delete(ctx, rec.ID); err != nil {
			fmt.Fprintf(os.Stderr, "skipping %s: %v\n", rec.ID, err)
			continue
		}
		removed++
	}
	fmt.Printf("removed %d of %d expired workspaces\n", removed, len(expired))
	return nil
}

// initFromFlags builds shared components for one-shot workspace commands.
func initFromFlags() (*SharedComponents, error) {
	logger := newLogger()
	cfg, err := loadConfig(goutils.Env("STARBRIDGE_CONFIG", workspacesConfigPath))
	if err != nil {
		return nil, err
	}
	return initShared(cfg, logger)
}
