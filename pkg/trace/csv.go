package trace

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/aretw0/gibbs/pkg/domain"
)

// ToCSV writes the trace in row-per-iteration form. Vector parameters are
// flattened into one column per component (name_0, name_1, ...). A trace with
// multiple chains writes one file per chain, suffixing the file stem with the
// chain index (trace.csv -> trace_0.csv, trace_1.csv, ...).
func (t *Trace) ToCSV(path string) error {
	if len(t.chains) == 1 {
		return t.writeChainCSV(path, 0)
	}
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	for i := range t.chains {
		if err := t.writeChainCSV(fmt.Sprintf("%s_%d%s", stem, i, ext), i); err != nil {
			return err
		}
	}
	return nil
}

func (t *Trace) writeChainCSV(path string, chain int) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	c := t.chains[chain]

	header := make([]string, 0, len(t.names))
	widths := make([]int, len(t.names))
	for i, name := range t.names {
		width := 1
		if seq := c[name]; len(seq) > 0 {
			width = len(seq[0])
		}
		widths[i] = width
		if width == 1 {
			header = append(header, name)
			continue
		}
		for j := 0; j < width; j++ {
			header = append(header, fmt.Sprintf("%s_%d", name, j))
		}
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	n := 0
	if len(t.names) > 0 {
		n = len(c[t.names[0]])
	}
	row := make([]string, 0, len(header))
	for it := 0; it < n; it++ {
		row = row[:0]
		for i, name := range t.names {
			v := c[name][it]
			if len(v) != widths[i] {
				return fmt.Errorf("%q iteration %d: width %d, expected %d: %w",
					name, it, len(v), widths[i], domain.ErrSchemaMismatch)
			}
			for _, x := range v {
				row = append(row, strconv.FormatFloat(x, 'g', -1, 64))
			}
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", it, err)
		}
	}
	w.Flush()
	return w.Error()
}

// FromCSV reads a single-chain trace written by ToCSV. Columns sharing a name
// stem with integer suffixes are reassembled into vector parameters.
func FromCSV(path string) (*Trace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}

	header := rows[0]
	stems, order := groupColumns(header)

	t := New(order...)
	for _, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("%s: row has %d fields, header has %d", path, len(row), len(header))
		}
		rec := make(domain.Record, len(order))
		for _, stem := range order {
			cols := stems[stem]
			v := make(domain.Vector, len(cols))
			for j, ci := range cols {
				x, err := strconv.ParseFloat(row[ci], 64)
				if err != nil {
					return nil, fmt.Errorf("%s column %q: %w", path, header[ci], err)
				}
				v[j] = x
			}
			rec[stem] = v
		}
		if err := t.Append(0, rec); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// FromCSVMulti reads a multi-chain trace from the per-chain files written by
// ToCSV: given trace.csv it loads trace_0.csv, trace_1.csv, ... in index
// order and combines them into one trace.
func FromCSVMulti(path string) (*Trace, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	matches, err := filepath.Glob(stem + "_*" + ext)
	if err != nil {
		return nil, err
	}
	type indexed struct {
		idx  int
		path string
	}
	var files []indexed
	for _, m := range matches {
		suffix := strings.TrimSuffix(strings.TrimPrefix(m, stem+"_"), ext)
		idx, err := strconv.Atoi(suffix)
		if err != nil {
			continue
		}
		files = append(files, indexed{idx, m})
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no chain files matching %s_*%s", stem, ext)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].idx < files[j].idx })

	chains := make([]Chain, 0, len(files))
	for _, f := range files {
		single, err := FromCSV(f.path)
		if err != nil {
			return nil, err
		}
		chains = append(chains, single.chains[0])
	}
	return NewMulti(chains...)
}

// groupColumns maps flattened column names back to parameter stems. A column
// "Betas_1" joins stem "Betas"; columns without an integer suffix stand
// alone. Returns the stem -> column-index mapping and stems in first-seen
// order.
func groupColumns(header []string) (map[string][]int, []string) {
	stems := make(map[string][]int)
	var order []string
	for i, col := range header {
		stem := col
		if cut := strings.LastIndex(col, "_"); cut > 0 {
			if _, err := strconv.Atoi(col[cut+1:]); err == nil {
				stem = col[:cut]
			}
		}
		if _, seen := stems[stem]; !seen {
			order = append(order, stem)
		}
		stems[stem] = append(stems[stem], i)
	}
	return stems, order
}
