// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package main

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
	"github.com/spf13/cobra"
)

func newCmdDeadLetter() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deadletter",
		Short: "Inspect and replay dead-lettered deliveries.",
	}

	cmd.AddCommand(newCmdDeadLetterList())
	cmd.AddCommand(newCmdDeadLetterRetry())
	cmd.AddCommand(newCmdDeadLetterClear())

	return cmd
}

func newCmdDeadLetterList() *cobra.Command {
	var flags clientFlags
	var subscriptionID, eventType string
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dead-letter entries.",
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			request := &model.ListDeadLetterRequest{
				SubscriptionID: subscriptionID,
				EventType:      eventType,
				Paging:         model.Paging{Page: page, PerPage: perPage},
			}
			entries, err := client.GetDeadLetterEntries(request)
			if err != nil {
				return errors.Wrap(err, "failed to list dead-letter entries")
			}

			if tableOutputEnabled(command) {
				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					rows = append(rows, []string{
						entry.ID,
						entry.SubscriptionID,
						entry.EventType,
						entry.FailureReason,
						strconv.Itoa(entry.AttemptsConsumed),
						strconv.Itoa(entry.RetryCount),
					})
				}
				printTable([]string{"ID", "SUBSCRIPTION", "EVENT", "REASON", "ATTEMPTS", "RETRIES"}, rows)
				return nil
			}
			return printJSON(entries)
		},
	}

	flags.addFlags(cmd)
	cmd.Flags().StringVar(&subscriptionID, "subscription", "", "Filter by owning subscription id.")
	cmd.Flags().StringVar(&eventType, "event-type", "", "Filter by event type.")
	cmd.Flags().IntVar(&page, "page", 0, "Page number.")
	cmd.Flags().IntVar(&perPage, "per-page", 50, "Rows per page.")
	registerTableOutputFlag(cmd)

	return cmd
}

func newCmdDeadLetterRetry() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "retry <entry-id>",
		Short: "Replay a dead-lettered delivery back through the delivery queue.",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			if err := client.RetryDeadLetterEntry(args[0]); err != nil {
				return errors.Wrap(err, "failed to retry dead-letter entry")
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

func newCmdDeadLetterClear() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove every dead-letter entry.",
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			if err := client.ClearDeadLetterEntries(); err != nil {
				return errors.Wrap(err, "failed to clear dead-letter entries")
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}
