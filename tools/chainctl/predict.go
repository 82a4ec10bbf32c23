package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	chainapp "homewatch/internal/chains/application"
	"homewatch/internal/chains/infrastructure/yamlfile"
)

func newPredictCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the next event for a list of recent events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			recent, err := yamlfile.LoadEvents(file)
			if err != nil {
				return err
			}
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			next, ok := s.engine.PredictNext(recent)
			out := cmd.OutOrStdout()
			if !ok {
				fmt.Fprintln(out, mutedStyle.Render("no prediction"))
				return nil
			}
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("next:"), next.String())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file with recent events")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newSuggestCmd() *cobra.Command {
	var info chainapp.DeviceInfo
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Suggest a monitoring profile for a device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd.Context())
			if err != nil {
				return err
			}
			suggestion := s.engine.SuggestProfile(info)
			out := cmd.OutOrStdout()
			normal := "-"
			if suggestion.SuggestedNormalState != nil {
				normal = *suggestion.SuggestedNormalState
			}
			chainsList := "-"
			if len(suggestion.SuggestedChains) > 0 {
				chainsList = strings.Join(suggestion.SuggestedChains, ", ")
			}
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("normal state:"), normal)
			fmt.Fprintf(out, "%s %s\n", headerStyle.Render("chains:"), chainsList)
			return nil
		},
	}
	cmd.Flags().StringVar(&info.SensorType, "sensor-type", "", "sensor type")
	cmd.Flags().StringVar(&info.SensorID, "sensor-id", "", "sensor id")
	cmd.Flags().StringVar(&info.Location, "location", "", "sensor location")
	return cmd
}
