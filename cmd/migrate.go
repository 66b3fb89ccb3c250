package main

import (
	"github.com/spf13/cobra"

	"github.com/patiponrmutl/TutorSystem/database"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the tutors table and its indexes",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, log, db, cleanup, err := bootstrap()
			if err != nil {
				return err
			}
			defer cleanup()

			return database.Migrate(db, log)
		},
	}
}
