package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/chemflux/internal/core"
)

const equipmentCSV = `Equipment Name,Type,Flowrate,Pressure
Pump-1,Pump,10,1.5
Valve-1,Valve,20,2.5
Pump-2,Pump,30,3
`

// setupEnv points the store and raw files at a temp dir.
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(dir, "chemflux.db"))
	t.Setenv("STORAGE_BACKEND", "disk")
	t.Setenv("STORAGE_DIR", filepath.Join(dir, "uploads"))
	t.Setenv("DB_AUTO_MIGRATE", "true")
	t.Setenv("RETENTION_WINDOW", "5")
	t.Setenv("LOG_LEVEL", "error")
	return dir
}

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "subcommand", args: []string{"version"}, want: "chemflux " + Version},
		{name: "flag", args: []string{"--version"}, want: "chemflux " + Version},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, tt.args...)
			require.NoError(t, err)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestSummarize_Table(t *testing.T) {
	dir := setupEnv(t)
	path := writeCSV(t, dir, "equipment.csv", equipmentCSV)

	out, err := execute(t, "summarize", path)
	require.NoError(t, err)

	for _, want := range []string{
		"Total Count: 3",
		"Columns: Equipment Name, Type, Flowrate, Pressure",
		"Averages",
		"Flowrate",
		"2.33",
		"Type Distribution",
		"Valve",
		"Preview (3 rows)",
		"Pump-2",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSummarize_JSON(t *testing.T) {
	dir := setupEnv(t)
	path := writeCSV(t, dir, "equipment.csv", equipmentCSV)

	out, err := execute(t, "summarize", path, "--format", "json")
	require.NoError(t, err)

	var s core.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 3, s.TotalCount)
	assert.Equal(t, []string{"Flowrate", "Pressure"}, s.Averages.Keys())
	avg, _ := s.Averages.Get("Pressure")
	assert.InDelta(t, 2.33, avg, 1e-9)
	assert.Equal(t, []string{"Pump", "Valve"}, s.TypeDistribution.Keys())
	pumps, _ := s.TypeDistribution.Get("Pump")
	assert.Equal(t, 2, pumps)
	assert.Len(t, s.Preview, 3)

	assert.Less(t, strings.Index(out, `"total_count"`), strings.Index(out, `"averages"`))
	assert.Less(t, strings.Index(out, `"averages"`), strings.Index(out, `"type_distribution"`))
}

func TestSummarize_Flags(t *testing.T) {
	dir := setupEnv(t)
	path := writeCSV(t, dir, "blanks.csv", "Kind,Flow,Temp\nA,1,\nB,3,20\nA,,30\n")

	out, err := execute(t, "summarize", path, "--format", "json",
		"--numeric-policy", "strict", "--category-columns", "Kind", "--preview-rows", "1")
	require.NoError(t, err)

	var s core.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, 0, s.Averages.Len(), "strict policy rejects columns with blanks")
	a, _ := s.TypeDistribution.Get("A")
	assert.Equal(t, 2, a)
	assert.Len(t, s.Preview, 1)

	out, err = execute(t, "summarize", path, "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, []string{"Flow", "Temp"}, s.Averages.Keys())
}

func TestSummarize_Errors(t *testing.T) {
	dir := setupEnv(t)
	good := writeCSV(t, dir, "good.csv", equipmentCSV)
	bad := writeCSV(t, dir, "bad.csv", "a,b\n1,2,3\n")

	tests := []struct {
		name    string
		args    []string
		wantErr string
		is      error
	}{
		{name: "no args", args: []string{"summarize"}, wantErr: "accepts 1 arg"},
		{name: "missing file", args: []string{"summarize", filepath.Join(dir, "nope.csv")}, is: os.ErrNotExist},
		{name: "malformed", args: []string{"summarize", bad}, is: core.ErrMalformedInput},
		{name: "unknown format", args: []string{"summarize", good, "--format", "xml"}, wantErr: "unknown format"},
		{name: "unknown policy", args: []string{"summarize", good, "--numeric-policy", "loose"}, wantErr: "loose"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			require.Error(t, err)
			if tt.wantErr != "" {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	dir := setupEnv(t)
	path := writeCSV(t, dir, "equipment.csv", equipmentCSV)
	t.Setenv("RETENTION_WINDOW", "0")

	_, err := execute(t, "summarize", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RETENTION_WINDOW")
}

func TestReport_LocalFile(t *testing.T) {
	dir := setupEnv(t)
	path := writeCSV(t, dir, "equipment.csv", equipmentCSV)
	output := filepath.Join(dir, "out.pdf")

	out, err := execute(t, "report", path, "-o", output, "--title", "Plant Report")
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+output+" (1 pages)")

	pdf, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF-")))
}

func TestReport_Stdout(t *testing.T) {
	dir := setupEnv(t)
	path := writeCSV(t, dir, "equipment.csv", equipmentCSV)

	out, err := execute(t, "report", path, "-o", "-")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "%PDF-"))
}

func TestReport_ArgumentErrors(t *testing.T) {
	dir := setupEnv(t)
	path := writeCSV(t, dir, "equipment.csv", equipmentCSV)

	_, err := execute(t, "report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--dataset")

	_, err = execute(t, "report", path, "--dataset", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not both")

	_, err = execute(t, "report", "--dataset", "99", "-o", filepath.Join(dir, "missing.pdf"))
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestIngestHistoryAndReport(t *testing.T) {
	dir := setupEnv(t)
	t.Setenv("RETENTION_WINDOW", "2")

	var paths []string
	for _, name := range []string{"one.csv", "two.csv", "three.csv"} {
		paths = append(paths, writeCSV(t, dir, name, equipmentCSV))
	}

	out, err := execute(t, append([]string{"ingest"}, paths...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested one.csv as dataset 1 (3 rows)")
	assert.Contains(t, out, "Ingested three.csv as dataset 3 (3 rows)")
	assert.Contains(t, out, "Evicted: 1")

	out, err = execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "three.csv")
	assert.Contains(t, out, "two.csv")
	assert.NotContains(t, out, "one.csv")

	out, err = execute(t, "history", "--format", "json")
	require.NoError(t, err)
	var datasets []core.Dataset
	require.NoError(t, json.Unmarshal([]byte(out), &datasets))
	require.Len(t, datasets, 2)
	assert.Equal(t, int64(3), datasets[0].ID)
	assert.Equal(t, int64(2), datasets[1].ID)

	output := filepath.Join(dir, "stored.pdf")
	out, err = execute(t, "report", "--dataset", "3", "-o", output)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+output)
	_, err = os.Stat(output)
	require.NoError(t, err)
}

func TestIngest_Name(t *testing.T) {
	dir := setupEnv(t)
	path := writeCSV(t, dir, "export.csv", equipmentCSV)

	out, err := execute(t, "ingest", path, "--name", "plant data.csv")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested plant data.csv as dataset 1")

	_, err = execute(t, "ingest", path, path, "--name", "x.csv")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--name needs exactly one file")
}

func TestIngest_RejectsMalformed(t *testing.T) {
	dir := setupEnv(t)
	bad := writeCSV(t, dir, "bad.csv", "a,b\n\"1,2\n")

	_, err := execute(t, "ingest", bad)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrMalformedInput)

	out, err := execute(t, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "(no datasets)")
}

func TestPrune(t *testing.T) {
	dir := setupEnv(t)
	path := writeCSV(t, dir, "equipment.csv", equipmentCSV)

	_, err := execute(t, "ingest", path, path, path)
	require.NoError(t, err)

	out, err := execute(t, "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to prune")

	t.Setenv("RETENTION_WINDOW", "1")
	out, err = execute(t, "prune")
	require.NoError(t, err)
	assert.Contains(t, out, "Pruned 2 datasets")

	out, err = execute(t, "history", "--format", "json")
	require.NoError(t, err)
	var datasets []core.Dataset
	require.NoError(t, json.Unmarshal([]byte(out), &datasets))
	require.Len(t, datasets, 1)
	assert.Equal(t, int64(3), datasets[0].ID)
}

func TestMigrate(t *testing.T) {
	setupEnv(t)
	t.Setenv("DB_AUTO_MIGRATE", "false")

	out, err := execute(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Database (sqlite) at schema version")

	// Idempotent
	_, err = execute(t, "migrate")
	require.NoError(t, err)
}
