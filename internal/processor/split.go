package processor

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ryabkov82/xlsx-splitter/internal/archive"
	"github.com/ryabkov82/xlsx-splitter/internal/naming"
	"github.com/ryabkov82/xlsx-splitter/internal/sheet"
	"github.com/ryabkov82/xlsx-splitter/internal/table"
	"go.uber.org/zap"
)

// Split делит файл на req.Parts частей с почти равным числом строк.
func (p *fileProcessor) Split(ctx context.Context, req SplitRequest) (*Result, error) {
	runID, log := newRun(p.log, "split")

	// проверка до чтения файла
	if _, err := table.PlanPartitions(0, req.Parts); err != nil {
		return nil, err
	}
	if req.Input == "" {
		return nil, fmt.Errorf("%w: не указан входной файл", table.ErrEmptyInput)
	}

	log.Info("чтение файла", zap.String("file", req.Input))
	src, err := sheet.ReadFile(req.Input, p.readOptions())
	if err != nil {
		return nil, err
	}
	if len(p.cfg.Columns) > 0 {
		if src, err = table.ProjectColumns(src, p.cfg.Columns); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(req.Input), err)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	parts, err := table.SplitTable(src, req.Parts)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(p.cfg.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: ошибка создания папки %s: %w", table.ErrWriteFailure, p.cfg.OutputDir, err)
	}

	res := &Result{RunID: runID, RowCount: int64(src.Len())}
	for _, part := range parts {
		res.PartRows = append(res.PartRows, part.Len())
	}

	if p.cfg.Zip {
		err = p.writeArchive(ctx, log, req.Input, parts, res)
	} else {
		err = p.writeParts(ctx, log, req.Input, parts, res)
	}
	if err != nil {
		return nil, err
	}

	log.Info("разбиение завершено",
		zap.Int("parts", len(parts)),
		zap.Int64("rows", res.RowCount),
		zap.Strings("files", res.OutputFiles))
	return res, nil
}

func (p *fileProcessor) writeParts(ctx context.Context, log *zap.Logger, input string, parts []*table.Table, res *Result) error {
	written := make([]string, 0, len(parts))
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			removeFiles(log, written)
			return err
		}
		path := filepath.Join(p.cfg.OutputDir, naming.SplitName(input, i+1, len(parts)))
		if err := sheet.WriteFile(path, part, p.writeOptions()); err != nil {
			removeFiles(log, written)
			return err
		}
		log.Debug("часть записана", zap.String("file", path), zap.Int("part", i+1), zap.Int("rows", part.Len()))
		written = append(written, path)
	}
	res.OutputFiles = written
	return nil
}

func (p *fileProcessor) writeArchive(ctx context.Context, log *zap.Logger, input string, parts []*table.Table, res *Result) error {
	ext := filepath.Ext(naming.SplitName(input, 1, 1))
	entries := make([]archive.Entry, len(parts))
	for i, part := range parts {
		entries[i] = archive.Entry{
			Name: naming.SplitName(input, i+1, len(parts)),
			Write: func(w io.Writer) error {
				if err := ctx.Err(); err != nil {
					return err
				}
				return sheet.Write(w, ext, part, p.writeOptions())
			},
		}
	}

	path := filepath.Join(p.cfg.OutputDir, naming.ArchiveName(input))
	if err := archive.WriteFile(path, entries); err != nil {
		return fmt.Errorf("%w: %w", table.ErrWriteFailure, err)
	}
	log.Debug("архив записан", zap.String("file", path), zap.Int("entries", len(entries)))
	res.OutputFiles = []string{path}
	return nil
}
