// Command validate checks the invariants of a yearly products file written
// by dhwyear: a fixed land mask, value ranges per product family, quantile
// ordering and agreement between threshold products.
//
// Usage:
//
//	go run ./cmd/validate -file out/DHW_ssp245_EC-Earth3_DHW.nc
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/coral-dhw-etl/internal/adapter/netcdf"
	"github.com/couchcryptid/coral-dhw-etl/internal/domain"
)

// reference is the product every other product is checked against.
const reference = "DHW_max"

// maxErrors caps the errors reported per phase.
const maxErrors = 20

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
	total  int
}

func (p *phase) errorf(format string, args ...any) {
	p.total++
	if len(p.errors) < maxErrors {
		p.errors = append(p.errors, fmt.Sprintf(format, args...))
	}
}

func (p *phase) passed() bool { return p.total == 0 }

func main() {
	file := flag.String("file", "", "yearly products file (.nc or .nc.zst)")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(1)
	}
	if code := run(*file); code != 0 {
		os.Exit(code)
	}
}

func run(path string) int {
	fmt.Println("=== DHW Yearly Products Validation ===")
	fmt.Println()

	vars, err := load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	ref, ok := vars[reference]
	if !ok {
		fmt.Fprintf(os.Stderr, "FATAL: %s has no %s variable\n", path, reference)
		return 1
	}

	phases := []*phase{
		validateStructure(vars),
		validateLandMask(ref, vars),
		validateRanges(vars),
		validateOrdering(ref, vars),
		validateThresholds(ref, vars),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", p.total)
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Variables: %d, years: %d (%d-%d), pixels: %d\n",
		len(vars), len(ref.Years), ref.Years[0], ref.Years[len(ref.Years)-1], ref.Plane())

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
		if p.total > len(p.errors) {
			fmt.Printf("  ... %d more\n", p.total-len(p.errors))
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

func load(path string) (map[string]domain.YearlyGrid, error) {
	r, err := netcdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	out := make(map[string]domain.YearlyGrid)
	for _, name := range r.Variables() {
		y, err := r.Yearly(name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		out[name] = y
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s has no data variables", path)
	}
	return out, nil
}

// family classifies a product variable by name.
type family int

const (
	famStress family = iota
	famDay
	famRelativeDay
	famCount
	famUnknown
)

func classify(name string) family {
	switch {
	case strings.HasPrefix(name, "DHW_"):
		return famStress
	case strings.HasPrefix(name, "DoYrel_"), strings.HasPrefix(name, "DOYrel_"):
		return famRelativeDay
	case strings.HasPrefix(name, "DoY_"), strings.HasPrefix(name, "DOY_"):
		return famDay
	case strings.HasPrefix(name, "nDaysAbove_"):
		return famCount
	}
	return famUnknown
}

// threshold parses the trailing number of names such as DoY_DHW4 or
// nDaysAbove_DHW8.
func threshold(name string) (float64, bool) {
	_, s, ok := strings.Cut(name, "_DHW")
	if !ok {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// ── Phase 1: structure ──

func validateStructure(vars map[string]domain.YearlyGrid) *phase {
	p := &phase{name: "Phase 1: Structure"}
	fmt.Println("Phase 1: Checking year axis and shapes...")

	ref := vars[reference]
	for i := 1; i < len(ref.Years); i++ {
		if ref.Years[i] <= ref.Years[i-1] {
			p.errorf("year axis not strictly ascending at index %d: %d after %d", i, ref.Years[i], ref.Years[i-1])
		}
	}
	for name, y := range vars {
		if classify(name) == famUnknown {
			p.errorf("%s: unrecognized product name", name)
		}
		if want := len(y.Years) * y.Plane(); len(y.Values) != want {
			p.errorf("%s: %d values, want %d", name, len(y.Values), want)
		}
		if len(y.Lat) != len(ref.Lat) || len(y.Lon) != len(ref.Lon) {
			p.errorf("%s: grid %dx%d, want %dx%d", name, len(y.Lat), len(y.Lon), len(ref.Lat), len(ref.Lon))
		}
	}
	return p
}

// ── Phase 2: land mask ──

func validateLandMask(ref domain.YearlyGrid, vars map[string]domain.YearlyGrid) *phase {
	p := &phase{name: "Phase 2: Land mask"}
	fmt.Println("Phase 2: Checking the land mask is fixed and shared...")

	n := ref.Plane()
	first := ref.Field(0)
	for t := range ref.Years {
		f := ref.Field(t)
		for px := range n {
			if math.IsNaN(first.Values[px]) != math.IsNaN(f.Values[px]) {
				p.errorf("%s: pixel %d missing in %d but not in %d", reference, px, ref.Years[0], ref.Years[t])
			}
		}
	}

	for name, y := range vars {
		if len(y.Values) != len(ref.Values) {
			continue
		}
		for i, v := range y.Values {
			land := math.IsNaN(ref.Values[i])
			switch {
			case land && !math.IsNaN(v):
				p.errorf("%s: land pixel %d in %d holds %g", name, i%n, y.Years[i/n], v)
			case !land && math.IsNaN(v) && (classify(name) == famCount || classify(name) == famStress):
				p.errorf("%s: ocean pixel %d in %d is missing", name, i%n, y.Years[i/n])
			}
		}
	}
	return p
}

// ── Phase 3: value ranges ──

func validateRanges(vars map[string]domain.YearlyGrid) *phase {
	p := &phase{name: "Phase 3: Value ranges"}
	fmt.Println("Phase 3: Checking value ranges per product...")

	for name, y := range vars {
		fam := classify(name)
		n := y.Plane()
		for i, v := range y.Values {
			if math.IsNaN(v) {
				continue
			}
			year := y.Years[i/n]
			days := 365.0
			if isLeap(year) {
				days = 366
			}
			switch fam {
			case famStress:
				if v < 0 {
					p.errorf("%s: negative stress %g at pixel %d in %d", name, v, i%n, year)
				}
			case famDay:
				if v < 1 || v > days || v != math.Trunc(v) {
					p.errorf("%s: day %g outside [1, %g] at pixel %d in %d", name, v, days, i%n, year)
				}
			case famRelativeDay:
				if v < 1 || v > 365 {
					p.errorf("%s: relative day %g outside [1, 365] at pixel %d in %d", name, v, i%n, year)
				}
			case famCount:
				if v < 0 || v > days || v != math.Trunc(v) {
					p.errorf("%s: count %g outside [0, %g] at pixel %d in %d", name, v, days, i%n, year)
				}
			}
		}
	}
	return p
}

// ── Phase 4: ordering ──

func validateOrdering(ref domain.YearlyGrid, vars map[string]domain.YearlyGrid) *phase {
	p := &phase{name: "Phase 4: Min <= quantile <= max"}
	fmt.Println("Phase 4: Checking statistic ordering...")

	const tol = 1e-6
	lower, hasMin := vars["DHW_min"]
	for name, y := range vars {
		if !strings.HasPrefix(name, "DHW_q") || len(y.Values) != len(ref.Values) {
			continue
		}
		for i, q := range y.Values {
			if math.IsNaN(q) {
				continue
			}
			if q > ref.Values[i]+tol {
				p.errorf("%s: %g above %s %g at index %d", name, q, reference, ref.Values[i], i)
			}
			if hasMin && q < lower.Values[i]-tol {
				p.errorf("%s: %g below DHW_min %g at index %d", name, q, lower.Values[i], i)
			}
		}
	}
	if hasMin {
		for i, v := range lower.Values {
			if v > ref.Values[i]+tol {
				p.errorf("DHW_min: %g above %s %g at index %d", v, reference, ref.Values[i], i)
			}
		}
	}
	return p
}

// ── Phase 5: threshold agreement ──

func validateThresholds(ref domain.YearlyGrid, vars map[string]domain.YearlyGrid) *phase {
	p := &phase{name: "Phase 5: Threshold agreement"}
	fmt.Println("Phase 5: Checking threshold products against the yearly maximum...")

	for name, y := range vars {
		fam := classify(name)
		if fam != famCount && fam != famDay {
			continue
		}
		th, ok := threshold(name)
		if !ok {
			p.errorf("%s: cannot parse threshold", name)
			continue
		}
		if len(y.Values) != len(ref.Values) {
			continue
		}
		for i, v := range y.Values {
			peak := ref.Values[i]
			if math.IsNaN(v) || math.IsNaN(peak) {
				continue
			}
			switch {
			case fam == famCount && v > 0 && peak <= th:
				p.errorf("%s: %g days above %g but yearly max is %g (index %d)", name, v, th, peak, i)
			case fam == famCount && v == 0 && peak > th:
				p.errorf("%s: no day above %g but yearly max is %g (index %d)", name, th, peak, i)
			case fam == famDay && peak < th:
				p.errorf("%s: crossing day %g but yearly max %g never reaches %g (index %d)", name, v, peak, th, i)
			}
		}
	}
	return p
}
