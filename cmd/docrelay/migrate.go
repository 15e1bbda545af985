// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package main

import (
	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/internal/store"
	"github.com/spf13/cobra"
)

// newCmdMigrate runs the bookkeeping store's schema migrations in
// isolation, without starting the pipeline or the management API --
// useful ahead of a rolling deploy where the new schema must exist
// before any replica starts serving, the same split teacher keeps
// between "cloud schema" maintenance and "cloud server".
func newCmdMigrate() *cobra.Command {
	var storeDSN string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations to the bookkeeping store.",
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true

			sqlStore, err := store.New(storeDSN, logger)
			if err != nil {
				return errors.Wrap(err, "failed to connect to store")
			}

			if err := sqlStore.Migrate(); err != nil {
				return errors.Wrap(err, "failed to migrate store")
			}

			logger.Info("store migrated successfully")
			return nil
		},
	}

	cmd.Flags().StringVar(&storeDSN, "store-dsn", "", "The relay's own bookkeeping database DSN.")
	_ = cmd.MarkFlagRequired("store-dsn")

	return cmd
}
