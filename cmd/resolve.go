package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ToobaSh/urbanviz-cli/internal/pipeline"
)

var (
	resolvePreferPano  bool
	resolveProvider    string
	resolveRadius      int
	resolveSkipImagery bool
	resolveSkipParcel  bool
	resolveSkipZoning  bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <address>",
	Short: "Run the full resolution workflow for an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		if st != nil {
			defer st.Close()
		}

		report, err := buildResolver(st).Resolve(ctx, args[0], pipeline.Options{
			PreferPano:  resolvePreferPano,
			ImageryMode: resolveProvider,
			SkipImagery: resolveSkipImagery,
			SkipParcel:  resolveSkipParcel,
			SkipZoning:  resolveSkipZoning,
		})
		if err != nil {
			return eris.Wrap(err, "resolve")
		}

		return printJSON(report)
	},
}

func init() {
	resolveCmd.Flags().BoolVar(&resolvePreferPano, "prefer-pano", true, "prefer panoramic imagery when present")
	resolveCmd.Flags().StringVar(&resolveProvider, "provider", "", "pin the imagery provider (mapillary, google)")
	resolveCmd.Flags().IntVar(&resolveRadius, "radius", 0, "base imagery search radius in meters (default from config)")
	resolveCmd.Flags().BoolVar(&resolveSkipImagery, "skip-imagery", false, "skip the imagery branch")
	resolveCmd.Flags().BoolVar(&resolveSkipParcel, "skip-parcel", false, "skip the parcel branch")
	resolveCmd.Flags().BoolVar(&resolveSkipZoning, "skip-zoning", false, "skip the zoning branch")
	rootCmd.AddCommand(resolveCmd)
}
