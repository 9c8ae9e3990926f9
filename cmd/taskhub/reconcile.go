package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"taskhub/internal/manager"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair links between tasks and users",
	Long: `Clears assignments that point to deleted users, restores missing
assignee names and rebuilds every user's pendingTasks list from the tasks.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()

		report, err := manager.NewReconciler(store, nil).Reconcile(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Orphaned tasks cleared: %d\n", report.OrphanedTasks)
		fmt.Printf("Assignee names restored: %d\n", report.NamedTasks)
		fmt.Printf("Users rebuilt: %d\n", report.RebuiltUsers)
		return nil
	},
}
