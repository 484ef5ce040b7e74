package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ArthurBabkin/ai-sales/session"
)

func newAddAdminCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-admin <username> <password>",
		Short: "Create an admin-panel login",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storeFromViper(cmd.Context())
			if err != nil {
				return err
			}
			mgr := session.NewManager(db, 0)
			if err := mgr.AddAdmin(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Printf("Admin %q added.\n", args[0])
			return nil
		},
	}
}
