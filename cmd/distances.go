package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/twpayne/go-geom"

	"github.com/griff-rees/estios/internal/distance"
	"github.com/griff-rees/estios/internal/fetcher"
	"github.com/griff-rees/estios/internal/loader"
)

var (
	distCentroidsPath string
	distShapefilePath string
	distNameField     string
)

// writeDistanceCSV renders the matrix as a square CSV table with region
// labels on both axes.
func writeDistanceCSV(w io.Writer, m *distance.Matrix) error {
	cw := csv.NewWriter(w)
	regions := m.Regions()

	header := append([]string{""}, regions...)
	if err := cw.Write(header); err != nil {
		return eris.Wrap(err, "write header")
	}
	for i, region := range regions {
		row := make([]string, 0, len(regions)+1)
		row = append(row, region)
		for j := range regions {
			row = append(row, strconv.FormatFloat(m.At(i, j), 'f', 3, 64))
		}
		if err := cw.Write(row); err != nil {
			return eris.Wrapf(err, "write row %s", region)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "flush")
}

var distancesCmd = &cobra.Command{
	Use:   "distances",
	Short: "Compute the region distance matrix from centroids",
	Long:  "Reads region centroids from a JSON file or derives them from a boundary shapefile, then prints the pairwise distance matrix in kilometres as CSV.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (distCentroidsPath == "") == (distShapefilePath == "") {
			return eris.New("exactly one of --centroids and --shapefile is required")
		}

		var centroids map[string]geom.Coord
		var err error
		switch {
		case distCentroidsPath != "":
			centroids, err = readCentroidsFile(distCentroidsPath)
		default:
			if distNameField == "" {
				return eris.New("--name-field is required with --shapefile")
			}
			centroids, err = loader.ReadShapefileCentroids(distShapefilePath, distNameField)
		}
		if err != nil {
			return err
		}

		m, err := distance.NewFromCentroids(centroids)
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.ErrOrStderr(), "%d regions\n", m.Len())
		return writeDistanceCSV(cmd.OutOrStdout(), m)
	},
}

// readCentroidsFile reads centroid coordinates from a JSON file. Geoportal
// centroid releases arrive as a ZIP holding one file, so those are unpacked
// to a scratch directory first.
func readCentroidsFile(path string) (map[string]geom.Coord, error) {
	if strings.HasSuffix(path, ".zip") {
		inner, err := fetcher.ExtractZIPSingle(path, filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		path = inner
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open centroids %s", path)
	}
	defer f.Close()
	return loader.ReadCentroids(f)
}

func init() {
	distancesCmd.Flags().StringVar(&distCentroidsPath, "centroids", "", "JSON file of region centroid coordinates")
	distancesCmd.Flags().StringVar(&distShapefilePath, "shapefile", "", "region boundary shapefile")
	distancesCmd.Flags().StringVar(&distNameField, "name-field", "", "shapefile attribute holding the region name")
	rootCmd.AddCommand(distancesCmd)
}
