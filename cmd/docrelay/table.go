// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package main

import (
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// registerTableOutputFlag adds the --output flag list-style commands use
// to switch between JSON (the default, scriptable) and a human-readable
// table, mirroring teacher's --table flag in cmd/cloud/table_printer.go.
func registerTableOutputFlag(cmd *cobra.Command) {
	cmd.Flags().String("output", "json", "Output format: json or table.")
}

func tableOutputEnabled(command *cobra.Command) bool {
	output, _ := command.Flags().GetString("output")
	return output == "table"
}

// printTable renders rows under the given headers, the same bare-bones
// rendering teacher's printTable uses for every list command.
func printTable(headers []string, rows [][]string) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeader(headers)

	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
}
