package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/ryabkov82/xlsx-splitter/internal/naming"
	"github.com/ryabkov82/xlsx-splitter/internal/sheet"
	"github.com/ryabkov82/xlsx-splitter/internal/table"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Merge объединяет строки входных файлов в один файл (или в части, если
// задан MaxRowPerFile и он превышен).
func (p *fileProcessor) Merge(ctx context.Context, req MergeRequest) (*Result, error) {
	runID, log := newRun(p.log, "merge")

	// получаем список входящих файлов
	inputs := req.Inputs
	fromDir := len(inputs) == 0 && p.cfg.InputDir != ""
	if fromDir {
		var err error
		if inputs, err = collectInputs(p.cfg.InputDir); err != nil {
			return nil, err
		}
	}

	output := req.Output
	if output == "" {
		output = p.cfg.OutputPath
	}
	if output == "" && len(inputs) > 0 {
		output = filepath.Join(p.cfg.OutputDir, naming.MergeName(inputs, p.now()))
	}
	if fromDir {
		// результат прошлого запуска мог остаться в той же папке
		inputs = excludeOutputs(inputs, output)
	}
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: нет файлов для объединения", table.ErrEmptyInput)
	}
	if !sheet.Supported(output) {
		return nil, fmt.Errorf("%w: неподдерживаемый формат результата %s", table.ErrWriteFailure, output)
	}

	log.Info("объединение файлов", zap.Int("files", len(inputs)), zap.String("output", output))

	tables, err := p.readAll(ctx, log, inputs)
	if err != nil {
		return nil, err
	}

	if p.cfg.AddSourceFile {
		for i, t := range tables {
			if tables[i], err = t.WithColumn(SourceColumn, filepath.Base(inputs[i])); err != nil {
				return nil, fmt.Errorf("%s: %w", filepath.Base(inputs[i]), err)
			}
		}
	}

	columns := p.cfg.Columns
	if p.cfg.AddSourceFile && len(columns) > 0 && !slices.Contains(columns, SourceColumn) {
		columns = append(slices.Clone(columns), SourceColumn)
	}

	merged, err := table.CombineTables(tables, table.CombineOptions{
		Columns:     columns,
		Strict:      p.cfg.Strict,
		FillMissing: p.cfg.FillMissing,
	})
	if err != nil {
		return nil, describeTableError(err, inputs)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: ошибка создания папки %s: %w", table.ErrWriteFailure, dir, err)
		}
	}

	// Удаляем старые файлы перед началом
	if err := removeExistingPartFiles(output); err != nil {
		return nil, err
	}

	res := &Result{RunID: runID, RowCount: int64(merged.Len())}
	if p.cfg.MaxRowPerFile > 0 && int64(merged.Len()) > p.cfg.MaxRowPerFile {
		if err := removeStaleOutput(output); err != nil {
			return nil, err
		}
		err = p.writeRolled(ctx, log, output, merged, res)
	} else {
		err = sheet.WriteFile(output, merged, p.writeOptions())
		res.OutputFiles = []string{output}
		res.PartRows = []int{merged.Len()}
	}
	if err != nil {
		return nil, err
	}

	log.Info("объединение завершено",
		zap.Int64("rows", res.RowCount),
		zap.Strings("files", res.OutputFiles))
	return res, nil
}

// readAll читает входы параллельно; таблицы возвращаются в порядке входов.
func (p *fileProcessor) readAll(ctx context.Context, log *zap.Logger, paths []string) ([]*table.Table, error) {
	tables := make([]*table.Table, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(p.cfg.Workers, 1))
	for i, path := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := sheet.ReadFile(path, p.readOptions())
			if err != nil {
				return err
			}
			log.Debug("файл прочитан", zap.String("file", path), zap.Int("rows", t.Len()))
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return tables, nil
}

// writeRolled делит результат на равные части не длиннее MaxRowPerFile.
func (p *fileProcessor) writeRolled(ctx context.Context, log *zap.Logger, output string, merged *table.Table, res *Result) error {
	plan, err := table.PlanByMaxRows(merged.Len(), int(p.cfg.MaxRowPerFile))
	if err != nil {
		return err
	}
	parts, err := table.Slice(merged, plan)
	if err != nil {
		return err
	}

	written := make([]string, 0, len(parts))
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			removeFiles(log, written)
			return err
		}
		fileName := naming.PartName(output, i+1)
		if err := sheet.WriteFile(fileName, part, p.writeOptions()); err != nil {
			removeFiles(log, written)
			return err
		}
		log.Debug("часть записана", zap.String("file", fileName), zap.Int("part", i+1), zap.Int("rows", part.Len()))
		written = append(written, fileName)
		res.PartRows = append(res.PartRows, part.Len())
	}
	res.OutputFiles = written
	return nil
}

// describeTableError добавляет к ошибке ядра имя файла, к которому она относится.
func describeTableError(err error, inputs []string) error {
	var te *table.Error
	if !errors.As(err, &te) || te.Table < 0 || te.Table >= len(inputs) {
		return err
	}
	return fmt.Errorf("%s: %w", filepath.Base(inputs[te.Table]), err)
}
