package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <address>",
	Short: "Geocode a single address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := buildGeocoder().Geocode(cmd.Context(), args[0])
		if err != nil {
			return eris.Wrap(err, "geocode")
		}
		return printJSON(res)
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}
