package runcfg

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `
model: hse
data:
  observations: obs.csv
  response: y
  covariates: [x1, x2]
  membership: region
  groups: groups.csv
  group_covariates: [z1]
  weights_lower: w.csv
  weights_upper: m.csv
run:
  samples: 5000
  jobs: 4
  seed: 42
  tuning: 1000
sink:
  kind: sqlite
  path: trace.db
output: trace.csv
listen: "127.0.0.1:9180"
`

func TestLoad_Valid(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.yaml", validConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "hse", cfg.Model)
	assert.Equal(t, 5000, cfg.Run.Samples)
	assert.Equal(t, 4, cfg.Run.Jobs)
	assert.Equal(t, uint64(42), cfg.Run.Seed)
	assert.Equal(t, 0.5, cfg.Run.Jump, "jump defaults when omitted")
	assert.Equal(t, "sqlite", cfg.Sink.Kind)
	assert.Equal(t, "127.0.0.1:9180", cfg.Listen)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name, yaml, want string
	}{
		{"UnknownModel", `
model: ols
data: {observations: o.csv, response: y, covariates: [x], membership: g, groups: g.csv, weights_lower: w.csv, weights_upper: m.csv}
run: {samples: 10}
`, "unknown model"},
		{"NoSamples", `
model: hse
data: {observations: o.csv, response: y, covariates: [x], membership: g, groups: g.csv, weights_lower: w.csv, weights_upper: m.csv}
`, "samples"},
		{"MissingWeights", `
model: hse
data: {observations: o.csv, response: y, covariates: [x], membership: g, groups: g.csv}
run: {samples: 10}
`, "weights"},
		{"UnknownKey", `
model: hse
bananas: true
data: {observations: o.csv, response: y, covariates: [x], membership: g, groups: g.csv, weights_lower: w.csv, weights_upper: m.csv}
run: {samples: 10}
`, "bananas"},
		{"CompactWithoutSink", `
model: hse
data: {observations: o.csv, response: y, covariates: [x], membership: g, groups: g.csv, weights_lower: w.csv, weights_upper: m.csv}
run: {samples: 10}
sink: {compact: true}
`, "compact"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, dir, tc.name+".yaml", tc.yaml)
			_, err := Load(path)
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestLoadInputs(t *testing.T) {
	dir := t.TempDir()
	obs := writeFile(t, dir, "obs.csv",
		"y,x1,x2,region\n1.5,0.1,2,0\n2.5,-0.4,1,0\n0.5,0.7,0,1\n1.0,0.2,3,1\n")
	groups := writeFile(t, dir, "groups.csv", "z1\n0.25\n-0.75\n")
	w := writeFile(t, dir, "w.csv", "0,1,0,0\n1,0,1,0\n0,1,0,1\n0,0,1,0\n")
	m := writeFile(t, dir, "m.csv", "0,1\n1,0\n")

	got, err := LoadInputs(Data{
		Observations: obs, Response: "y", Covariates: []string{"x1", "x2"},
		Membership: "region",
		Groups:     groups, GroupCovariates: []string{"z1"},
		WeightsLower: w, WeightsUpper: m,
	})
	require.NoError(t, err)

	assert.Equal(t, []float64{1.5, 2.5, 0.5, 1.0}, got.Y)
	assert.Equal(t, []int{0, 0, 1, 1}, got.Membership)

	r, c := got.X.Dims()
	assert.Equal(t, [2]int{4, 2}, [2]int{r, c})
	assert.Equal(t, -0.4, got.X.At(1, 0))

	r, c = got.W.Dims()
	assert.Equal(t, [2]int{4, 4}, [2]int{r, c})
	r, c = got.M.Dims()
	assert.Equal(t, [2]int{2, 2}, [2]int{r, c})
	assert.Equal(t, 0.25, got.Z.At(0, 0))
}

func TestLoadInputs_Errors(t *testing.T) {
	dir := t.TempDir()
	obs := writeFile(t, dir, "obs.csv", "y,region\n1.0,0\n")
	groups := writeFile(t, dir, "groups.csv", "z1\n0.5\n")
	w := writeFile(t, dir, "w.csv", "0\n")
	m := writeFile(t, dir, "m.csv", "0\n")

	_, err := LoadInputs(Data{
		Observations: obs, Response: "y", Covariates: []string{"nope"},
		Membership: "region",
		Groups:     groups, GroupCovariates: []string{"z1"},
		WeightsLower: w, WeightsUpper: m,
	})
	assert.ErrorContains(t, err, "nope")

	_, err = ReadMatrixCSV(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)

	ragged := writeFile(t, dir, "ragged.csv", "0,1\n1\n")
	_, err = ReadMatrixCSV(ragged)
	assert.Error(t, err)
}
