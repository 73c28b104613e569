package processor

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ryabkov82/xlsx-splitter/internal/config"
	"github.com/ryabkov82/xlsx-splitter/internal/sheet"
	"github.com/ryabkov82/xlsx-splitter/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func numbered(header string, from, to int) string {
	var b strings.Builder
	b.WriteString(header + "\n")
	for i := from; i <= to; i++ {
		b.WriteString(strings.Repeat("x", i%3) + "," + string(rune('a'+i%26)) + "\n")
	}
	return b.String()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.HasHeaders = true
	cfg.OutputDir = t.TempDir()
	require.NoError(t, cfg.Validate())
	return cfg
}

func readBack(t *testing.T, path string) *table.Table {
	t.Helper()
	got, err := sheet.ReadFile(path, sheet.ReadOptions{HasHeaders: true})
	require.NoError(t, err)
	return got
}

func TestSplitWritesBalancedParts(t *testing.T) {
	cfg := testConfig(t)
	in := filepath.Join(t.TempDir(), "отчет.csv")
	writeFile(t, in, numbered("id,name", 1, 10))

	res, err := New(cfg, zap.NewNop()).Split(context.Background(), SplitRequest{Input: in, Parts: 3})
	require.NoError(t, err)

	assert.Equal(t, int64(10), res.RowCount)
	assert.Equal(t, []int{4, 3, 3}, res.PartRows)
	require.Equal(t, []string{
		filepath.Join(cfg.OutputDir, "отчет——拆分1of3.csv"),
		filepath.Join(cfg.OutputDir, "отчет——拆分2of3.csv"),
		filepath.Join(cfg.OutputDir, "отчет——拆分3of3.csv"),
	}, res.OutputFiles)

	parts := make([]*table.Table, 0, len(res.OutputFiles))
	for _, f := range res.OutputFiles {
		parts = append(parts, readBack(t, f))
	}
	back, err := table.CombineTables(parts, table.CombineOptions{})
	require.NoError(t, err)
	assert.True(t, readBack(t, in).Equal(back))
}

func TestSplitIntoArchive(t *testing.T) {
	cfg := testConfig(t)
	cfg.Zip = true

	src := table.New("Имя", "Сумма")
	src.Append("a", 1.0)
	src.Append("b", 2.0)
	src.Append("c", 3.0)
	in := filepath.Join(t.TempDir(), "in.xlsx")
	require.NoError(t, sheet.WriteFile(in, src, sheet.WriteOptions{WriteHeader: true}))

	res, err := New(cfg, nil).Split(context.Background(), SplitRequest{Input: in, Parts: 2})
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(cfg.OutputDir, "in——拆分.zip")}, res.OutputFiles)
	assert.Equal(t, []int{2, 1}, res.PartRows)

	zr, err := zip.OpenReader(res.OutputFiles[0])
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 2)
	assert.Equal(t, "in——拆分1of2.xlsx", zr.File[0].Name)
	assert.Equal(t, "in——拆分2of2.xlsx", zr.File[1].Name)

	rc, err := zr.File[1].Open()
	require.NoError(t, err)
	defer rc.Close()
	// zip-записи не поддерживают Seek, excelize читает поток целиком
	part, err := sheet.Read(rc, ".xlsx", sheet.ReadOptions{HasHeaders: true})
	require.NoError(t, err)
	assert.Equal(t, []table.Row{{"c", 3.0}}, part.Rows)
}

func TestSplitInvalidParts(t *testing.T) {
	cfg := testConfig(t)
	in := filepath.Join(t.TempDir(), "in.csv")
	writeFile(t, in, numbered("id,name", 1, 3))

	_, err := New(cfg, nil).Split(context.Background(), SplitRequest{Input: in, Parts: 0})
	require.ErrorIs(t, err, table.ErrInvalidArgument)

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSplitWithColumns(t *testing.T) {
	cfg := testConfig(t)
	in := filepath.Join(t.TempDir(), "in.csv")
	writeFile(t, in, "A,B,C\n1,2,3\n4,5,6\n")

	cfg.Columns = []string{"C", "A"}
	res, err := New(cfg, nil).Split(context.Background(), SplitRequest{Input: in, Parts: 1})
	require.NoError(t, err)
	got := readBack(t, res.OutputFiles[0])
	assert.Equal(t, []string{"C", "A"}, got.Columns)
	assert.Equal(t, []table.Row{{"3", "1"}, {"6", "4"}}, got.Rows)

	cfg.Columns = []string{"A", "Z"}
	_, err = New(cfg, nil).Split(context.Background(), SplitRequest{Input: in, Parts: 2})
	assert.ErrorIs(t, err, table.ErrInvalidColumn)
}

func TestMergeFromDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputDir = t.TempDir()
	cfg.AddSourceFile = true
	writeFile(t, filepath.Join(cfg.InputDir, "b.csv"), "id,v\n3,c\n")
	writeFile(t, filepath.Join(cfg.InputDir, "a.csv"), "id,v\n1,a\n2,b\n")
	writeFile(t, filepath.Join(cfg.InputDir, "notes.txt"), "skip me")
	writeFile(t, filepath.Join(cfg.InputDir, "~$a.xlsx"), "lock file")

	out := filepath.Join(cfg.OutputDir, "merged.csv")
	res, err := New(cfg, zap.NewNop()).Merge(context.Background(), MergeRequest{Output: out})
	require.NoError(t, err)
	assert.Equal(t, []string{out}, res.OutputFiles)
	assert.Equal(t, int64(3), res.RowCount)

	got := readBack(t, out)
	assert.Equal(t, []string{"id", "v", SourceColumn}, got.Columns)
	assert.Equal(t, []table.Row{
		{"1", "a", "a.csv"},
		{"2", "b", "a.csv"},
		{"3", "c", "b.csv"},
	}, got.Rows)
}

func TestMergeSkipsPreviousOutput(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputDir = t.TempDir()
	cfg.OutputPath = filepath.Join(cfg.InputDir, "merged.csv")
	writeFile(t, filepath.Join(cfg.InputDir, "a.csv"), "id\n1\n")
	writeFile(t, filepath.Join(cfg.InputDir, "merged.csv"), "id\nold\n")
	writeFile(t, filepath.Join(cfg.InputDir, "merged_part1.csv"), "id\nold\n")

	res, err := New(cfg, nil).Merge(context.Background(), MergeRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowCount)
	assert.Equal(t, []table.Row{{"1"}}, readBack(t, cfg.OutputPath).Rows)

	_, err = os.Stat(filepath.Join(cfg.InputDir, "merged_part1.csv"))
	assert.True(t, os.IsNotExist(err))
}

func TestMergeOutputName(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	jan := filepath.Join(dir, "jan.csv")
	feb := filepath.Join(dir, "feb.csv")
	writeFile(t, jan, "id\n1\n")
	writeFile(t, feb, "id\n2\n")

	p := New(cfg, nil).(*fileProcessor)
	p.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	res, err := p.Merge(context.Background(), MergeRequest{Inputs: []string{jan, feb}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(cfg.OutputDir, "20240102030405——合并.csv")}, res.OutputFiles)
	assert.Equal(t, []table.Row{{"1"}, {"2"}}, readBack(t, res.OutputFiles[0]).Rows)

	res, err = p.Merge(context.Background(), MergeRequest{Inputs: []string{jan}})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(cfg.OutputDir, "jan——合并.csv")}, res.OutputFiles)
}

func TestMergeRollsOverMaxRows(t *testing.T) {
	cfg := testConfig(t)
	cfg.MaxRowPerFile = 2
	in := filepath.Join(t.TempDir(), "in.csv")
	writeFile(t, in, numbered("id,name", 1, 5))

	out := filepath.Join(cfg.OutputDir, "merged.csv")
	stale := filepath.Join(cfg.OutputDir, "merged_part4.csv")
	writeFile(t, stale, "id\nold\n")
	writeFile(t, out, "id\nold\n")

	res, err := New(cfg, nil).Merge(context.Background(), MergeRequest{Inputs: []string{in}, Output: out})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 1}, res.PartRows)
	assert.Equal(t, []string{
		filepath.Join(cfg.OutputDir, "merged_part1.csv"),
		filepath.Join(cfg.OutputDir, "merged_part2.csv"),
		filepath.Join(cfg.OutputDir, "merged_part3.csv"),
	}, res.OutputFiles)

	for _, path := range []string{stale, out} {
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err), path)
	}
}

func TestMergeKeepsFilesResemblingParts(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputDir = t.TempDir()
	cfg.OutputPath = filepath.Join(cfg.InputDir, "merged.csv")
	partners := filepath.Join(cfg.InputDir, "merged_partners.csv")
	writeFile(t, filepath.Join(cfg.InputDir, "a.csv"), "id\n1\n")
	writeFile(t, partners, "id\n2\n")

	res, err := New(cfg, nil).Merge(context.Background(), MergeRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.RowCount)
	assert.Equal(t, []table.Row{{"1"}, {"2"}}, readBack(t, cfg.OutputPath).Rows)

	_, err = os.Stat(partners)
	assert.NoError(t, err)
}

func TestMergeTwiceIntoInputDir(t *testing.T) {
	cfg := testConfig(t)
	cfg.InputDir = cfg.OutputDir
	writeFile(t, filepath.Join(cfg.InputDir, "a.csv"), "id\n1\n2\n")

	want := []string{filepath.Join(cfg.OutputDir, "a——合并.csv")}
	for range 2 {
		res, err := New(cfg, nil).Merge(context.Background(), MergeRequest{})
		require.NoError(t, err)
		assert.Equal(t, want, res.OutputFiles)
		assert.Equal(t, int64(2), res.RowCount)
	}
	assert.Equal(t, []table.Row{{"1"}, {"2"}}, readBack(t, want[0]).Rows)

	entries, err := os.ReadDir(cfg.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestMergeErrors(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	writeFile(t, a, "id,v\n1,a\n")
	writeFile(t, b, "id,w\n2,b\n")
	out := filepath.Join(cfg.OutputDir, "merged.csv")
	p := New(cfg, nil)

	_, err := p.Merge(context.Background(), MergeRequest{})
	assert.ErrorIs(t, err, table.ErrEmptyInput)

	_, err = p.Merge(context.Background(), MergeRequest{Inputs: []string{a, b}, Output: out})
	require.ErrorIs(t, err, table.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "a.csv")
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))

	_, err = p.Merge(context.Background(), MergeRequest{Inputs: []string{a, filepath.Join(dir, "missing.csv")}, Output: out})
	assert.ErrorIs(t, err, table.ErrReadFailure)

	_, err = p.Merge(context.Background(), MergeRequest{Inputs: []string{a}, Output: filepath.Join(dir, "out.txt")})
	assert.ErrorIs(t, err, table.ErrWriteFailure)

	cfg.FillMissing = true
	res, err := p.Merge(context.Background(), MergeRequest{Inputs: []string{a, b}, Output: out})
	require.NoError(t, err)
	got := readBack(t, res.OutputFiles[0])
	assert.Equal(t, []string{"id", "v", "w"}, got.Columns)
	assert.Equal(t, []table.Row{{"1", "a", nil}, {"2", nil, "b"}}, got.Rows)
}

func TestMergeCancelled(t *testing.T) {
	cfg := testConfig(t)
	in := filepath.Join(t.TempDir(), "in.csv")
	writeFile(t, in, "id\n1\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(cfg, nil).Merge(ctx, MergeRequest{Inputs: []string{in, in}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunIDInLogs(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	cfg := testConfig(t)
	in := filepath.Join(t.TempDir(), "in.csv")
	writeFile(t, in, "id\n1\n2\n")

	res, err := New(cfg, zap.New(core)).Split(context.Background(), SplitRequest{Input: in, Parts: 2})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunID)

	entries := logs.FilterField(zap.String("run_id", res.RunID)).All()
	assert.NotEmpty(t, entries)
}
