package loader

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/griff-rees/estios/internal/model"
)

// ReadNationalAccounts decodes one period's national totals from JSON.
func ReadNationalAccounts(r io.Reader) (model.NationalAccounts, error) {
	var accounts model.NationalAccounts
	if err := json.NewDecoder(r).Decode(&accounts); err != nil {
		return model.NationalAccounts{}, eris.Wrap(err, "loader: decode national accounts")
	}
	if accounts.Population <= 0 {
		return model.NationalAccounts{}, eris.New("loader: national accounts need a positive population")
	}
	return accounts, nil
}

// ReadCentroids decodes region centroids from a JSON object of region
// label to [easting, northing] pairs in metres.
func ReadCentroids(r io.Reader) (map[string]geom.Coord, error) {
	var raw map[string][2]float64
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, eris.Wrap(err, "loader: decode centroids")
	}
	if len(raw) == 0 {
		return nil, eris.New("loader: no centroids in input")
	}
	centroids := make(map[string]geom.Coord, len(raw))
	for region, xy := range raw {
		centroids[region] = geom.Coord{xy[0], xy[1]}
	}
	return centroids, nil
}
