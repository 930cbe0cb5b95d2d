package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/trezcool/vigil/core/client"
)

func (cli *commandLine) addClientCmd() *cobra.Command {
	var nc client.NewClient
	cmd := &cobra.Command{
		Use:   "addclient",
		Short: "Register a client site",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if nc.ClientID == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.readPassword(cmd, "Enter password:")
			if err != nil {
				return err
			}
			nc.Password, nc.PasswordConfirm = pwd, pwd
			clt, err := cli.addClient(nc)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "client %s (%s) added\n", clt.ClientID, clt.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&nc.ClientID, "client-id", "", "Login identifier of the client. The password will be prompted next.")
	cmd.Flags().StringVar(&nc.Name, "name", "", "Name of the client site")
	cmd.Flags().StringVar(&nc.RepresentativeName, "rep", "", "Name of the client representative")
	cmd.Flags().StringVar(&nc.Email, "email", "", "Where evaluation receipts are sent")
	return cmd
}

func (cli *commandLine) addClient(nc client.NewClient) (client.Client, error) {
	if err := nc.Validate(cli.validate); err != nil {
		return client.Client{}, err
	}
	return cli.cltSvc.Create(context.Background(), nc)
}
