package multivar

import (
	"math"
	"sort"

	"runqa/domain/series"
)

// Table is the run x metric table built by an outer join on run number.
// Missing cells are NaN.
type Table struct {
	Runs    []int
	Metrics []string
	Cells   [][]float64
}

// BuildTable joins the series on run number, keeping metric order.
func BuildTable(all []series.MetricSeries) Table {
	runSet := make(map[int]struct{})
	for _, s := range all {
		for _, p := range s.Points {
			runSet[p.Run] = struct{}{}
		}
	}
	runs := make([]int, 0, len(runSet))
	for r := range runSet {
		runs = append(runs, r)
	}
	sort.Ints(runs)

	index := make(map[int]int, len(runs))
	for i, r := range runs {
		index[r] = i
	}

	t := Table{Runs: runs, Metrics: make([]string, len(all)), Cells: make([][]float64, len(runs))}
	for i := range t.Cells {
		row := make([]float64, len(all))
		for j := range row {
			row[j] = math.NaN()
		}
		t.Cells[i] = row
	}
	for j, s := range all {
		t.Metrics[j] = s.Name
		for _, p := range s.Points {
			t.Cells[index[p.Run]][j] = p.Value
		}
	}
	return t
}

// Complete keeps only rows where every cell is finite.
func (t Table) Complete() WideMatrix {
	w := WideMatrix{Metrics: append([]string(nil), t.Metrics...)}
	for i, row := range t.Cells {
		ok := len(row) == len(t.Metrics)
		for _, v := range row {
			if !series.IsFinite(v) {
				ok = false
				break
			}
		}
		if ok {
			w.Runs = append(w.Runs, t.Runs[i])
			w.Values = append(w.Values, append([]float64(nil), row...))
		}
	}
	return w
}

// WideMatrix is the complete-row subset of a Table used by correlation and PCA.
type WideMatrix struct {
	Runs    []int
	Metrics []string
	Values  [][]float64
}

// Dims returns (runs, metrics).
func (w WideMatrix) Dims() (int, int) {
	return len(w.Runs), len(w.Metrics)
}
