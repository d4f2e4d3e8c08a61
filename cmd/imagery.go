package main

import (
	"github.com/spf13/cobra"
)

var (
	imageryPreferPano bool
	imageryProvider   string
	imageryRadius     int
)

var imageryCmd = &cobra.Command{
	Use:   "imagery [address]",
	Short: "Find street-level imagery for an address or point",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pt, err := lookupPoint(ctx, args)
		if err != nil {
			return err
		}

		sel := buildImagery(imageryRadius).Resolve(ctx, pt, imageryPreferPano, imageryProvider)
		if sel == nil {
			cmd.Println("no imagery available")
			return nil
		}
		return printJSON(sel)
	},
}

func init() {
	imageryCmd.Flags().BoolVar(&imageryPreferPano, "prefer-pano", true, "prefer panoramic imagery when present")
	imageryCmd.Flags().StringVar(&imageryProvider, "provider", "", "pin the imagery provider (mapillary, google)")
	imageryCmd.Flags().IntVar(&imageryRadius, "radius", 0, "base search radius in meters (default from config)")
	rootCmd.AddCommand(imageryCmd)
}
