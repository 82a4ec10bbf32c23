package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <username>",
		Short: "Show the red/yellow/green status for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			status := s.engine.UserStatus(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], renderUserStatus(status))
			return nil
		},
	}
}

func newContactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contacts",
		Short: "Inspect the escalation ladder",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the escalation ladder by level",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			ladder := s.engine.Ladder(cmd.Context())
			rows := make([][]string, 0, ladder.Levels())
			for level := 0; level < ladder.Levels(); level++ {
				contact, _ := ladder.Target(level)
				rows = append(rows, []string{strconv.Itoa(level), contact.Name, contact.Phone})
			}
			return writeTable(cmd.OutOrStdout(), headerStyle, []string{"LEVEL", "NAME", "PHONE"}, rows)
		},
	})
	return cmd
}
