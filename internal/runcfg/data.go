package runcfg

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Inputs is the fully-loaded model input set.
type Inputs struct {
	Y          []float64
	X          *mat.Dense
	W          *mat.Dense
	M          *mat.Dense
	Z          *mat.Dense
	Membership []int
}

// LoadInputs reads every file the data section points at and assembles the
// model inputs. Group indices in the membership column are zero-based.
func LoadInputs(d Data) (*Inputs, error) {
	obs, err := readTable(d.Observations)
	if err != nil {
		return nil, err
	}
	y, err := obs.floatColumn(d.Response)
	if err != nil {
		return nil, err
	}
	x, err := obs.floatMatrix(d.Covariates)
	if err != nil {
		return nil, err
	}
	membership, err := obs.intColumn(d.Membership)
	if err != nil {
		return nil, err
	}

	groups, err := readTable(d.Groups)
	if err != nil {
		return nil, err
	}
	z, err := groups.floatMatrix(d.GroupCovariates)
	if err != nil {
		return nil, err
	}

	w, err := ReadMatrixCSV(d.WeightsLower)
	if err != nil {
		return nil, err
	}
	m, err := ReadMatrixCSV(d.WeightsUpper)
	if err != nil {
		return nil, err
	}

	return &Inputs{Y: y, X: x, W: w, M: m, Z: z, Membership: membership}, nil
}

// ReadMatrixCSV loads a headerless numeric CSV as a dense matrix.
func ReadMatrixCSV(path string) (*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty matrix", path)
	}
	out := mat.NewDense(len(rows), len(rows[0]), nil)
	for i, row := range rows {
		if len(row) != len(rows[0]) {
			return nil, fmt.Errorf("%s: row %d has %d columns, row 0 has %d",
				path, i, len(row), len(rows[0]))
		}
		for j, cell := range row {
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				return nil, fmt.Errorf("%s: row %d column %d: %w", path, i, j, err)
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// table is a header-keyed CSV.
type table struct {
	path    string
	index   map[string]int
	records [][]string
}

func readTable(path string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: need a header row and at least one record", path)
	}
	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[name] = i
	}
	return &table{path: path, index: index, records: rows[1:]}, nil
}

func (t *table) column(name string) ([]string, error) {
	col, ok := t.index[name]
	if !ok {
		return nil, fmt.Errorf("%s: no column %q", t.path, name)
	}
	out := make([]string, len(t.records))
	for i, rec := range t.records {
		out[i] = rec[col]
	}
	return out, nil
}

func (t *table) floatColumn(name string) ([]float64, error) {
	cells, err := t.column(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(cells))
	for i, cell := range cells {
		if out[i], err = strconv.ParseFloat(cell, 64); err != nil {
			return nil, fmt.Errorf("%s: column %q row %d: %w", t.path, name, i, err)
		}
	}
	return out, nil
}

func (t *table) intColumn(name string) ([]int, error) {
	cells, err := t.column(name)
	if err != nil {
		return nil, err
	}
	out := make([]int, len(cells))
	for i, cell := range cells {
		if out[i], err = strconv.Atoi(cell); err != nil {
			return nil, fmt.Errorf("%s: column %q row %d: %w", t.path, name, i, err)
		}
	}
	return out, nil
}

func (t *table) floatMatrix(names []string) (*mat.Dense, error) {
	out := mat.NewDense(len(t.records), len(names), nil)
	for j, name := range names {
		col, err := t.floatColumn(name)
		if err != nil {
			return nil, err
		}
		out.SetCol(j, col)
	}
	return out, nil
}
