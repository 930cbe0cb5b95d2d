package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trezcool/vigil/core/guard"
)

func (cli *commandLine) addGuardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "addguard GUARD_ID NAME...",
		Short: "Register a guard",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				_ = cmd.Usage()
				return errHelp
			}
			grd, err := cli.addGuard(args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "guard %s (%s) added\n", grd.GuardID, grd.Name)
			return nil
		},
	}
}

func (cli *commandLine) addGuard(guardID, name string) (guard.Guard, error) {
	ng := guard.NewGuard{GuardID: guardID, Name: name}
	if err := ng.Validate(cli.validate); err != nil {
		return guard.Guard{}, err
	}
	return cli.grdSvc.Create(context.Background(), ng)
}
