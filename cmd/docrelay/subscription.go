// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package main

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/relaydock/docrelay/model"
	"github.com/spf13/cobra"
)

func newCmdSubscription() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subscription",
		Short: "Manage webhook subscriptions on a running docrelay server.",
	}

	cmd.AddCommand(newCmdSubscriptionCreate())
	cmd.AddCommand(newCmdSubscriptionGet())
	cmd.AddCommand(newCmdSubscriptionList())
	cmd.AddCommand(newCmdSubscriptionUpdate())
	cmd.AddCommand(newCmdSubscriptionDelete())
	cmd.AddCommand(newCmdSubscriptionTest())
	cmd.AddCommand(newCmdSubscriptionDeliveries())
	cmd.AddCommand(newCmdSubscriptionStats())

	return cmd
}

type subscriptionCreateFlags struct {
	clientFlags
	name           string
	url            string
	secret         string
	events         []string
	collections    []string
	projects       []string
	statuses       []string
	priorities     []string
	assignees      []string
	tags           []string
	active         bool
	maxAttempts    int
	backoffMult    int
	initialDelayMs int
	timeoutSeconds int
	dryRun         bool
}

func (flags *subscriptionCreateFlags) addFlags(cmd *cobra.Command) {
	flags.clientFlags.addFlags(cmd)
	cmd.Flags().StringVar(&flags.name, "name", "", "A unique, human-readable name for the subscription.")
	cmd.Flags().StringVar(&flags.url, "url", "", "The http(s) URL deliveries are POSTed to.")
	cmd.Flags().StringVar(&flags.secret, "secret", "", "Shared secret used to sign deliveries with X-Webhook-Signature.")
	cmd.Flags().StringSliceVar(&flags.events, "events", nil, "Event patterns to subscribe to, e.g. issue.*, project.created, *.")
	cmd.Flags().StringSliceVar(&flags.collections, "collections", nil, "Restrict matching mutations to these collections.")
	cmd.Flags().StringSliceVar(&flags.projects, "filter-projects", nil, "Only route mutations whose project is one of these.")
	cmd.Flags().StringSliceVar(&flags.statuses, "filter-statuses", nil, "Only route mutations whose status is one of these.")
	cmd.Flags().StringSliceVar(&flags.priorities, "filter-priorities", nil, "Only route mutations whose priority is one of these.")
	cmd.Flags().StringSliceVar(&flags.assignees, "filter-assignees", nil, "Only route mutations whose assignee is one of these.")
	cmd.Flags().StringSliceVar(&flags.tags, "filter-tags", nil, "Only route mutations whose tags intersect this set.")
	cmd.Flags().BoolVar(&flags.active, "active", true, "Whether the subscription starts active.")
	cmd.Flags().IntVar(&flags.maxAttempts, "max-attempts", 5, "Maximum delivery attempts before dead-lettering.")
	cmd.Flags().IntVar(&flags.backoffMult, "backoff-multiplier", 2, "Exponential backoff multiplier between attempts.")
	cmd.Flags().IntVar(&flags.initialDelayMs, "initial-delay-ms", 1000, "Delay before the first retry, in milliseconds.")
	cmd.Flags().IntVar(&flags.timeoutSeconds, "timeout-seconds", 30, "Per-attempt HTTP timeout in seconds.")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Print the subscription request that would be sent without creating it.")

	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("url")
	_ = cmd.MarkFlagRequired("events")
}

func newCmdSubscriptionCreate() *cobra.Command {
	var flags subscriptionCreateFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a webhook subscription.",
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags.clientFlags)

			request := &model.CreateSubscriptionRequest{
				Name:    flags.name,
				URL:     flags.url,
				Events:  flags.events,
				Active:  &flags.active,
				Filters: model.SubscriptionFilters{
					Projects:    flags.projects,
					Statuses:    flags.statuses,
					Priorities:  flags.priorities,
					Assignees:   flags.assignees,
					Tags:        flags.tags,
					Collections: flags.collections,
				},
				RetryPolicy: &model.RetryPolicy{
					MaxAttempts:       flags.maxAttempts,
					BackoffMultiplier: flags.backoffMult,
					InitialDelayMs:    flags.initialDelayMs,
				},
				TimeoutSeconds: &flags.timeoutSeconds,
			}
			if flags.secret != "" {
				request.Secret = &flags.secret
			}

			if flags.dryRun {
				return printJSON(request)
			}

			sub, err := client.CreateSubscription(request)
			if err != nil {
				return errors.Wrap(err, "failed to create subscription")
			}

			return printJSON(sub)
		},
	}

	flags.addFlags(cmd)
	return cmd
}

func newCmdSubscriptionGet() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "get <subscription-id>",
		Short: "Fetch a single subscription by id.",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			sub, err := client.GetSubscription(args[0])
			if err != nil {
				return errors.Wrap(err, "failed to get subscription")
			}
			if sub == nil {
				return errors.Errorf("subscription %s not found", args[0])
			}

			return printJSON(sub)
		},
	}

	flags.addFlags(cmd)
	return cmd
}

type subscriptionListFlags struct {
	clientFlags
	active bool
	name   string
	events []string
}

func newCmdSubscriptionList() *cobra.Command {
	var flags subscriptionListFlags
	var activeSet bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List webhook subscriptions.",
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags.clientFlags)

			request := &model.ListSubscriptionsRequest{
				NameSubstring: flags.name,
				Events:        flags.events,
				Paging:        model.Paging{Page: 0, PerPage: model.AllPerPage},
			}
			if activeSet {
				request.Active = &flags.active
			}

			subs, err := client.GetSubscriptions(request)
			if err != nil {
				return errors.Wrap(err, "failed to list subscriptions")
			}

			if tableOutputEnabled(command) {
				printSubscriptionTable(subs)
				return nil
			}
			return printJSON(subs)
		},
	}

	flags.clientFlags.addFlags(cmd)
	cmd.Flags().BoolVar(&flags.active, "active", true, "Filter by active state.")
	cmd.Flags().StringVar(&flags.name, "name", "", "Filter by a name substring.")
	cmd.Flags().StringSliceVar(&flags.events, "events", nil, "Filter by declared event patterns.")
	registerTableOutputFlag(cmd)
	cmd.PreRun = func(command *cobra.Command, args []string) {
		activeSet = command.Flags().Changed("active")
	}

	return cmd
}

func printSubscriptionTable(subs []*model.Subscription) {
	rows := make([][]string, 0, len(subs))
	for _, sub := range subs {
		rows = append(rows, []string{
			sub.ID,
			sub.Name,
			sub.URL,
			strings.Join(sub.Events, ","),
			strconv.FormatBool(sub.Active),
			strconv.FormatInt(sub.DeliveredCount, 10),
			strconv.FormatInt(sub.FailedCount, 10),
		})
	}
	printTable([]string{"ID", "NAME", "URL", "EVENTS", "ACTIVE", "DELIVERED", "FAILED"}, rows)
}

func newCmdSubscriptionUpdate() *cobra.Command {
	var flags clientFlags
	var name, url, secret string
	var events, collections []string
	var active bool

	cmd := &cobra.Command{
		Use:   "update <subscription-id>",
		Short: "Update fields of an existing subscription.",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			request := &model.UpdateSubscriptionRequest{
				Name:   getStringFlagPointer(command, "name"),
				URL:    getStringFlagPointer(command, "url"),
				Secret: getStringFlagPointer(command, "secret"),
				Active: getBoolFlagPointer(command, "active"),
			}
			if command.Flags().Changed("events") {
				request.Events = events
			}
			if command.Flags().Changed("collections") {
				request.Filters = &model.SubscriptionFilters{Collections: collections}
			}

			sub, err := client.UpdateSubscription(args[0], request)
			if err != nil {
				return errors.Wrap(err, "failed to update subscription")
			}

			return printJSON(sub)
		},
	}

	flags.addFlags(cmd)
	cmd.Flags().StringVar(&name, "name", "", "New name.")
	cmd.Flags().StringVar(&url, "url", "", "New target URL.")
	cmd.Flags().StringVar(&secret, "secret", "", "New shared secret.")
	cmd.Flags().StringSliceVar(&events, "events", nil, "New event patterns.")
	cmd.Flags().StringSliceVar(&collections, "collections", nil, "New collection filter.")
	cmd.Flags().BoolVar(&active, "active", true, "New active state.")

	return cmd
}

func newCmdSubscriptionDelete() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "delete <subscription-id>",
		Short: "Delete a webhook subscription.",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			if err := client.DeleteSubscription(args[0]); err != nil {
				return errors.Wrap(err, "failed to delete subscription")
			}

			return nil
		},
	}

	flags.addFlags(cmd)
	return cmd
}

func newCmdSubscriptionTest() *cobra.Command {
	var flags clientFlags

	cmd := &cobra.Command{
		Use:   "test <subscription-id>",
		Short: "Synthesize and deliver a test event to one subscription.",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			result, err := client.TestSubscriptionDelivery(args[0])
			if err != nil {
				return errors.Wrap(err, "failed to test subscription delivery")
			}

			return printJSON(result)
		},
	}

	flags.addFlags(cmd)
	return cmd
}

func newCmdSubscriptionDeliveries() *cobra.Command {
	var flags clientFlags
	var status string
	var page, perPage int

	cmd := &cobra.Command{
		Use:   "deliveries <subscription-id>",
		Short: "List delivery attempt history for a subscription.",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			request := &model.ListDeliveriesRequest{
				Status: status,
				Paging: model.Paging{Page: page, PerPage: perPage},
			}
			records, err := client.GetDeliveries(args[0], request)
			if err != nil {
				return errors.Wrap(err, "failed to fetch delivery history")
			}

			return printJSON(records)
		},
	}

	flags.addFlags(cmd)
	cmd.Flags().StringVar(&status, "status", "", "Filter by outcome, e.g. success or failure.")
	cmd.Flags().IntVar(&page, "page", 0, "Page number.")
	cmd.Flags().IntVar(&perPage, "per-page", 50, "Rows per page.")

	return cmd
}

func newCmdSubscriptionStats() *cobra.Command {
	var flags clientFlags
	var period string

	cmd := &cobra.Command{
		Use:   "stats <subscription-id>",
		Short: "Show delivery stats for a subscription over a period, e.g. 7d.",
		Args:  cobra.ExactArgs(1),
		RunE: func(command *cobra.Command, args []string) error {
			command.SilenceUsage = true
			client := createClient(flags)

			stats, err := client.GetSubscriptionStats(args[0], period)
			if err != nil {
				return errors.Wrap(err, "failed to fetch subscription stats")
			}

			return printJSON(stats)
		},
	}

	flags.addFlags(cmd)
	cmd.Flags().StringVar(&period, "period", "7d", "Period string, e.g. 1h, 7d, 2w, 1m, 1y.")

	return cmd
}
