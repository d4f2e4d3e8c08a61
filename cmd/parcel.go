package main

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/ToobaSh/urbanviz-cli/internal/geomath"
)

var (
	lookupLat float64
	lookupLon float64
)

// lookupPoint resolves the query point for the single-branch commands:
// an explicit --lat/--lon pair wins, otherwise the address argument is
// geocoded.
func lookupPoint(ctx context.Context, args []string) (geomath.Point, error) {
	if lookupLat != 0 || lookupLon != 0 {
		pt := geomath.Point{Lat: lookupLat, Lon: lookupLon}
		if !pt.Valid() {
			return geomath.Point{}, errors.New("coordinates out of range")
		}
		return pt, nil
	}

	if len(args) == 0 {
		return geomath.Point{}, errors.New("an address argument or --lat/--lon is required")
	}

	res, err := buildGeocoder().Geocode(ctx, args[0])
	if err != nil {
		return geomath.Point{}, eris.Wrap(err, "geocode")
	}
	if !res.Matched {
		return geomath.Point{}, errors.New("address did not geocode")
	}
	return geomath.Point{Lat: res.Latitude, Lon: res.Longitude}, nil
}

var parcelCmd = &cobra.Command{
	Use:   "parcel [address]",
	Short: "Find the cadastral parcel nearest an address or point",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pt, err := lookupPoint(ctx, args)
		if err != nil {
			return err
		}

		parcel := buildParcelLookup(buildWFSClient()).Find(ctx, pt)
		if parcel == nil {
			cmd.Println("no parcel found")
			return nil
		}
		return printJSON(parcel)
	},
}

func init() {
	for _, c := range []*cobra.Command{parcelCmd, zoningCmd, imageryCmd} {
		c.Flags().Float64Var(&lookupLat, "lat", 0, "latitude (skips geocoding)")
		c.Flags().Float64Var(&lookupLon, "lon", 0, "longitude (skips geocoding)")
	}
	rootCmd.AddCommand(parcelCmd)
}
