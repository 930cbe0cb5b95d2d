package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/trezcool/vigil/core"
	"github.com/trezcool/vigil/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var name, uname, email string
	var owner bool
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update an administrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if uname == "" && email == "" {
				_ = cmd.Usage()
				return errHelp
			}
			pwd, err := cli.readPassword(cmd, "Enter password:")
			if err != nil {
				return err
			}
			usr, err := cli.addUser(name, uname, email, pwd, owner)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cli.out, "user %s saved\n", usr.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&uname, "username", "", "Username")
	cmd.Flags().StringVar(&email, "email", "", "Email")
	cmd.Flags().BoolVar(&owner, "owner", false, "Grant the admin:owner role")
	return cmd
}

// addUser updates or creates an active administrator.
func (cli *commandLine) addUser(name, uname, email, pwd string, owner bool) (user.User, error) {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	exists := true
	usr, err := cli.findUser(ctx, uname, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return user.User{}, err
		}
		exists = false
		now := time.Now().UTC()
		usr = user.User{
			ID:        uuid.New().String(),
			Username:  uname,
			Email:     email,
			CreatedAt: now,
			UpdatedAt: now,
		}
	}
	if name = core.CleanString(name); name != "" {
		usr.Name = name
	}
	usr.Roles = []string{user.RoleAdmin}
	if owner {
		usr.Roles = []string{user.RoleAdminOwner}
	}
	usr.IsActive = true
	if err := usr.SetPassword(pwd); err != nil {
		return user.User{}, err
	}

	if exists {
		usr.UpdatedAt = time.Now().UTC()
		return cli.usrRepo.UpdateUser(ctx, usr)
	}
	return cli.usrRepo.CreateUser(ctx, usr)
}

func (cli *commandLine) findUser(ctx context.Context, uname, email string) (user.User, error) {
	var err error
	for _, id := range []string{uname, email} {
		if id == "" {
			continue
		}
		var usr user.User
		if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: id}); err == nil {
			return usr, nil
		}
		if !core.IsNotFound(err) {
			return user.User{}, err
		}
	}
	return user.User{}, err
}
