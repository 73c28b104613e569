// Package processor выполняет разбиение и объединение файлов таблиц:
// чтение входов, вызов операций пакета table и запись результатов.
package processor

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/ryabkov82/xlsx-splitter/internal/config"
	"github.com/ryabkov82/xlsx-splitter/internal/sheet"
	"go.uber.org/zap"
)

// SourceColumn - имя колонки с именем исходного файла (AddSourceFile).
const SourceColumn = "SourceFile"

type Processor interface {
	Split(ctx context.Context, req SplitRequest) (*Result, error)
	Merge(ctx context.Context, req MergeRequest) (*Result, error)
}

type SplitRequest struct {
	Input string
	Parts int
}

type MergeRequest struct {
	// Inputs - файлы в порядке объединения; пусто - все файлы из cfg.InputDir.
	Inputs []string
	// Output - путь результата; пусто - cfg.OutputPath или имя по исходным файлам.
	Output string
}

type Result struct {
	RunID       string
	OutputFiles []string
	RowCount    int64
	PartRows    []int // строк в каждом выходном файле (в архиве - в каждой записи)
}

type fileProcessor struct {
	cfg *config.Config
	log *zap.Logger
	now func() time.Time
}

// New создает Processor. Состояние между вызовами не хранится.
func New(cfg *config.Config, logger *zap.Logger) Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &fileProcessor{
		cfg: cfg,
		log: logger,
		now: time.Now,
	}
}

func (p *fileProcessor) readOptions() sheet.ReadOptions {
	return sheet.ReadOptions{
		Sheet:      p.cfg.Sheet,
		HasHeaders: p.cfg.HasHeaders,
	}
}

func (p *fileProcessor) writeOptions() sheet.WriteOptions {
	return sheet.WriteOptions{
		WriteHeader: p.cfg.HasHeaders,
		SampleRows:  p.cfg.SampleRows,
	}
}

func newRun(log *zap.Logger, op string) (string, *zap.Logger) {
	id := uuid.NewString()
	return id, log.With(zap.String("run_id", id), zap.String("op", op))
}

// removeFiles удаляет уже записанные файлы неудачного запуска.
func removeFiles(log *zap.Logger, paths []string) {
	for _, path := range paths {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			log.Warn("не удалось удалить файл", zap.String("file", path), zap.Error(err))
		}
	}
}
