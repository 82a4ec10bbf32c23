package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	chains "homewatch/internal/chains/domain"
	"homewatch/internal/chains/infrastructure/yamlfile"
)

func newScenariosCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "List and edit stored scenarios",
	}
	cmd.AddCommand(newScenariosListCmd(), newScenariosAddCmd(), newScenariosDeleteCmd(), newScenariosImportCmd())
	return cmd
}

func newScenariosListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scenarios with their index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			views := s.engine.ListScenarios()
			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintln(out, mutedStyle.Render("no scenarios"))
				return nil
			}
			rows := make([][]string, 0, len(views))
			for _, view := range views {
				rows = append(rows, []string{strconv.Itoa(view.Index), view.Label, strconv.Itoa(len(view.Events))})
			}
			return writeTable(out, headerStyle, []string{"INDEX", "LABEL", "EVENTS"}, rows)
		},
	}
}

func newScenariosAddCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add one scenario from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scenarios, err := yamlfile.LoadScenarios(file)
			if err != nil {
				return err
			}
			if len(scenarios) != 1 {
				return fmt.Errorf("expected exactly one scenario in %s, found %d (use import for several)", file, len(scenarios))
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			index := s.engine.AddScenario(scenarios[0])
			if err := s.save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added scenario %d\n", index)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "scenario YAML file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newScenariosImportCmd() *cobra.Command {
	var (
		file    string
		replace bool
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Append every scenario from a YAML file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scenarios, err := yamlfile.LoadScenarios(file)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			if replace {
				for s.engine.ScenarioCount() > 0 {
					s.engine.DeleteScenario(s.engine.ScenarioCount() - 1)
				}
			}
			for _, scenario := range scenarios {
				s.engine.AddScenario(scenario)
			}
			if err := s.save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d scenarios (total %d)\n", len(scenarios), s.engine.ScenarioCount())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "scenario YAML file")
	cmd.Flags().BoolVar(&replace, "replace", false, "remove existing scenarios first")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newScenariosDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <index>",
		Short: "Delete the scenario at index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index must be an integer: %w", err)
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			if !s.engine.DeleteScenario(index) {
				return fmt.Errorf("%w: %d", chains.ErrIndexOutOfRange, index)
			}
			if err := s.save(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted scenario %d\n", index)
			return nil
		},
	}
}
