package main

import (
	"github.com/spf13/cobra"

	"github.com/ToobaSh/urbanviz-cli/internal/wfs"
)

var zoningCmd = &cobra.Command{
	Use:   "zoning [address]",
	Short: "Find the zoning classification at an address or point",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pt, err := lookupPoint(ctx, args)
		if err != nil {
			return err
		}

		zoning := buildZoningLookup(buildWFSClient()).Find(ctx, pt)
		if zoning == nil {
			cmd.Println("no zoning found")
			return nil
		}

		out := struct {
			*wfs.Zoning
			RegulationURL string `json:"regulation_url,omitempty"`
		}{
			Zoning:        zoning,
			RegulationURL: wfs.RegulationURL(zoning.Properties),
		}
		return printJSON(out)
	},
}

func init() {
	rootCmd.AddCommand(zoningCmd)
}
