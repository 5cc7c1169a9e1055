package main

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newUserCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}

	var (
		password string
		admin    bool
	)
	add := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			users := newUsers(store, cfg)
			create := users.CreateUser
			if admin {
				create = users.CreateAdmin
			}
			u, err := create(cmd.Context(), args[0], []byte(password))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (id %d)\n", u.Username, u.ID)
			return nil
		},
	}
	add.Flags().StringVar(&password, "password", "", "Password for the new account")
	add.Flags().BoolVar(&admin, "admin", false, "Create an administrator; allowed even when sign-ups are closed")

	list := &cobra.Command{
		Use:   "list",
		Short: "List accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			store, err := openStore(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer store.Close()

			users, err := newUsers(store, cfg).ListUsers(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tADMIN\tACTIVE")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%t\t%t\n", u.ID, u.Username, u.IsAdmin, u.IsActive)
			}
			return w.Flush()
		},
	}

	cmd.AddCommand(add, list)
	return cmd
}
