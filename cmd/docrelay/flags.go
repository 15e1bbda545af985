// Copyright (c) 2015-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package main

import (
	"github.com/relaydock/docrelay/model"
	"github.com/spf13/cobra"
)

// clientFlags are the flags every management-API CLI command shares:
// where the server lives and how to authenticate to it.
type clientFlags struct {
	serverAddress string
	apiKey        string
}

func (flags *clientFlags) addFlags(command *cobra.Command) {
	command.Flags().StringVar(&flags.serverAddress, "server", "http://localhost:8087", "The management API address of a running docrelay server.")
	command.Flags().StringVar(&flags.apiKey, "api-key", "", "The API key used to authenticate to the management API.")
}

func createClient(flags clientFlags) *model.Client {
	if flags.apiKey == "" {
		return model.NewClient(flags.serverAddress)
	}
	return model.NewClientWithHeaders(flags.serverAddress, map[string]string{
		"Authorization": "Bearer " + flags.apiKey,
	})
}

func getStringFlagPointer(command *cobra.Command, name string) *string {
	if command.Flags().Changed(name) {
		val, _ := command.Flags().GetString(name)
		return &val
	}
	return nil
}

func getBoolFlagPointer(command *cobra.Command, name string) *bool {
	if command.Flags().Changed(name) {
		val, _ := command.Flags().GetBool(name)
		return &val
	}
	return nil
}

func getIntFlagPointer(command *cobra.Command, name string) *int {
	if command.Flags().Changed(name) {
		val, _ := command.Flags().GetInt(name)
		return &val
	}
	return nil
}
