// Command genmock writes small synthetic model files for smoke tests: one
// daily DHW file per model named <scenario>_<model>_DHW.nc, plus a one-year
// SST climatology (tos) on the same grid. Land occupies the south-west
// corner of the grid and is missing in every file.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock/ssp245 \
//	  -scenario ssp245 \
//	  -models EC-Earth3,MPI-ESM1-2-HR \
//	  -start 2020 -years 3
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/coral-dhw-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
)

// params shapes the synthetic DHW signal.
type params struct {
	nlat, nlon int
	start      int
	years      int
	seed       uint64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory")
	scenario := flag.String("scenario", "ssp245", "scenario name used in file names")
	models := flag.String("models", "EC-Earth3", "comma-separated model names")
	start := flag.Int("start", 2020, "first year")
	years := flag.Int("years", 3, "number of years")
	nlat := flag.Int("nlat", 8, "latitude points")
	nlon := flag.Int("nlon", 12, "longitude points")
	seed := flag.Uint64("seed", 1, "random seed")
	flag.Parse()

	if *out == "" || *years < 1 || *nlat < 2 || *nlon < 2 {
		flag.Usage()
		return fmt.Errorf("missing or invalid flags")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	// Fixed clock for reproducible creation_date attributes.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2024, time.April, 27, 6, 0, 0, 0, time.UTC)))
	defer domain.SetClock(nil)

	p := params{nlat: *nlat, nlon: *nlon, start: *start, years: *years, seed: *seed}
	for i, model := range strings.Split(*models, ",") {
		model = strings.TrimSpace(model)
		if model == "" {
			continue
		}
		info := domain.SourceInfo{
			File:     fmt.Sprintf("%s_%s_DHW.nc", *scenario, model),
			Model:    model,
			Scenario: *scenario,
		}
		g := dhwGrid(p, uint64(i))
		attrs := domain.Provenance{
			Title:    "Synthetic Degree Heating Week",
			Abstract: "Generated by genmock for tests",
			Source:   info,
		}.Attributes()
		attrs.Set("units", "degC.week")
		path := filepath.Join(*out, info.File)
		if err := netcdf.WriteGrid(path, "DHW", g, attrs); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		log.Printf("%s: %d days, %dx%d pixels", path, len(g.Times), p.nlat, p.nlon)
	}

	clim := climatologyGrid(p)
	path := filepath.Join(*out, "tos_climatology.nc")
	attrs := domain.Provenance{Title: "Synthetic SST climatology"}.Attributes()
	if err := netcdf.WriteGrid(path, "tos", clim, attrs); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	log.Printf("%s: %d days", path, len(clim.Times))
	return nil
}

func axes(p params) (lat, lon []float64) {
	lat = make([]float64, p.nlat)
	for i := range lat {
		lat[i] = -30 + 60*float64(i)/float64(p.nlat-1)
	}
	lon = make([]float64, p.nlon)
	for j := range lon {
		lon[j] = 100 + 80*float64(j)/float64(p.nlon-1)
	}
	return lat, lon
}

func isLand(p params, i, j int) bool {
	return i < p.nlat/4 && j < p.nlon/4
}

// dhwGrid builds daily DHW with one summer stress peak per year that grows
// over the years and with latitude. member shifts the peak by a few days.
func dhwGrid(p params, member uint64) domain.Grid {
	rng := rand.New(rand.NewPCG(p.seed, member))
	lat, lon := axes(p)
	first := time.Date(p.start, time.January, 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(p.start+p.years, time.January, 1, 0, 0, 0, 0, time.UTC)
	g := domain.Grid{Lat: lat, Lon: lon}
	for d := first; d.Before(last); d = d.AddDate(0, 0, 1) {
		g.Times = append(g.Times, d)
	}

	n := p.nlat * p.nlon
	g.Values = make([]float64, len(g.Times)*n)
	peakDay := 60.0 + float64(member)*5
	for t, day := range g.Times {
		doy := float64(day.YearDay())
		season := math.Max(0, math.Cos(2*math.Pi*(doy-peakDay)/365))
		growth := 1 + 0.5*float64(day.Year()-p.start)
		for i := range p.nlat {
			for j := range p.nlon {
				k := t*n + i*p.nlon + j
				if isLand(p, i, j) {
					g.Values[k] = math.NaN()
					continue
				}
				amp := 6 * growth * (0.5 + float64(i)/float64(p.nlat))
				g.Values[k] = math.Max(0, amp*season*season+rng.NormFloat64()*0.2)
			}
		}
	}
	return g
}

// climatologyGrid builds a 365-day SST cycle whose coldest day shifts with
// longitude.
func climatologyGrid(p params) domain.Grid {
	lat, lon := axes(p)
	g := domain.Grid{Lat: lat, Lon: lon}
	start := time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)
	for d := range 365 {
		g.Times = append(g.Times, start.AddDate(0, 0, d))
	}
	n := p.nlat * p.nlon
	g.Values = make([]float64, len(g.Times)*n)
	for t := range g.Times {
		for i := range p.nlat {
			for j := range p.nlon {
				k := t*n + i*p.nlon + j
				if isLand(p, i, j) {
					g.Values[k] = math.NaN()
					continue
				}
				coldest := 200 + 10*float64(j)
				g.Values[k] = 27 - 2*math.Cos(2*math.Pi*(float64(t+1)-coldest)/365)
			}
		}
	}
	return g
}
