package domain

import (
	"path/filepath"
	"strings"
	"time"
)

// SourceInfo describes the model file a product was derived from.
type SourceInfo struct {
	File     string
	Model    string
	Scenario string
}

// ParseSourceName reads scenario and model from a file named
// "<scenario>_<model>_DHW.nc", e.g. "ssp245_EC-Earth3_DHW.nc". Names that do
// not follow the pattern yield only the File field.
func ParseSourceName(path string) SourceInfo {
	base := filepath.Base(path)
	info := SourceInfo{File: base}
	stem := strings.TrimSuffix(strings.TrimSuffix(base, ".zst"), ".nc")
	stem, ok := strings.CutSuffix(stem, "_DHW")
	if !ok {
		return info
	}
	scenario, model, ok := strings.Cut(stem, "_")
	if !ok || scenario == "" || model == "" {
		return info
	}
	info.Scenario, info.Model = scenario, model
	return info
}

// Provenance holds the descriptive attributes written with every dataset.
type Provenance struct {
	Title       string
	Abstract    string
	Source      SourceInfo
	Author      string
	AuthorEmail string
	Citation    string
	RunID       string
	Years       []int
}

// Attributes renders p as ordered global attributes. The creation date comes
// from the package clock.
func (p Provenance) Attributes() Attributes {
	var a Attributes
	set := func(k, v string) {
		if v != "" {
			a.Set(k, v)
		}
	}
	set("title", p.Title)
	set("abstract", p.Abstract)
	set("source_file", p.Source.File)
	set("model_name", p.Source.Model)
	set("IPCC_scenario", p.Source.Scenario)
	if len(p.Years) > 0 {
		set("time_coverage_start", time.Date(p.Years[0], time.January, 1, 0, 0, 0, 0, time.UTC).Format(time.DateOnly))
		set("time_coverage_end", time.Date(p.Years[len(p.Years)-1], time.December, 31, 0, 0, 0, 0, time.UTC).Format(time.DateOnly))
	}
	set("creation_date", clock.Now().UTC().Format(time.RFC3339))
	set("author_name", p.Author)
	set("author_email", p.AuthorEmail)
	set("citation", p.Citation)
	set("run_id", p.RunID)
	return a
}
