// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

// Package main is the entry point to the docrelay webhook relay's server
// and management CLI.
package main

import (
	"os"
	"strings"

	"github.com/relaydock/docrelay/model"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var instanceID string

var rootCmd = &cobra.Command{
	Use:   "docrelay",
	Short: "docrelay relays document-store mutations to subscribed webhooks.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		populateEnv(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return newCmdServer().RunE(cmd, args)
	},
	// SilenceErrors allows us to explicitly log the error returned from rootCmd below.
	SilenceErrors: true,
}

func init() {
	// If the environment variable "HOSTNAME" is set then that will be
	// used for the instance ID value of this server. In Kubernetes this
	// should pick up the pod replica name.
	instanceID = os.Getenv("HOSTNAME")
	if len(instanceID) == 0 {
		instanceID = model.NewID()
	}

	rootCmd.AddCommand(newCmdServer())
	rootCmd.AddCommand(newCmdSubscription())
	rootCmd.AddCommand(newCmdDeadLetter())
	rootCmd.AddCommand(newCmdEvents())
	rootCmd.AddCommand(newCmdHealth())
	rootCmd.AddCommand(newCmdMigrate())
	rootCmd.AddCommand(newCmdCompletion())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.WithError(err).Error("command failed")
		os.Exit(1)
	}
}

// populateEnv lets every flag be overridden by an environment variable
// of the form DOCRELAY_FLAG_NAME, mirroring teacher's cmd/cloud
// populateEnv helper.
func populateEnv(cmd *cobra.Command) {
	v := viper.New()

	v.SetEnvPrefix("docrelay")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if !f.Changed {
			if v.IsSet(f.Name) {
				_ = cmd.Flags().Set(f.Name, v.GetString(f.Name))
			}
		}
	})
}
