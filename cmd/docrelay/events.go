// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newCmdEvents() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the event-type catalog and replay past events.",
	}

	cmd.AddCommand(newCmdEventsCatalog())
	cmd.AddCommand(newCmdEventsReplay())

	return cmd
}

func newCmdEventsCatalog() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List every known entity kind and its event types.",
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			catalog, err := client.GetEventCatalog()
			if err != nil {
				return errors.Wrap(err, "failed to fetch event catalog")
			}

			if tableOutputEnabled(command) {
				rows := make([][]string, 0, len(catalog))
				for _, info := range catalog {
					rows = append(rows, []string{info.Collection, info.EntityKind, string(info.Priority)})
				}
				printTable([]string{"COLLECTION", "ENTITY KIND", "PRIORITY"}, rows)
				return nil
			}
			return printJSON(catalog)
		},
	}

	flags.addFlags(cmd)
	registerTableOutputFlag(cmd)
	return cmd
}

func newCmdEventsReplay() *cobra.Command {
	var flags clientFlags
	var subscriptionIDs []string

	cmd := &cobra.Command{
		Use:   "replay <event-id>",
		Short: "Re-enqueue a past event's deliveries to the given subscriptions.",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			if err := client.ReplayEvent(args[0], subscriptionIDs); err != nil {
				return errors.Wrap(err, "failed to replay event")
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	cmd.Flags().StringSliceVar(&subscriptionIDs, "subscriptions", nil, "Subscription ids to replay the event to.")
	_ = cmd.MarkFlagRequired("subscriptions")

	return cmd
}

func newCmdHealth() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Report the health of every pipeline component.",
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			report, err := client.GetHealth()
			if err != nil {
				return errors.Wrap(err, "failed to fetch health report")
			}

			return printJSON(report)
		},
	}

	flags.addFlags(cmd)
	return cmd
}
