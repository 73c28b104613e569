// Package sheet читает файлы таблиц в table.Table и записывает их обратно.
// XLSX обрабатывается через excelize, CSV - через encoding/csv.
package sheet

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ryabkov82/xlsx-splitter/internal/table"
)

type ReadOptions struct {
	Sheet      string // лист для чтения; пусто - первый
	HasHeaders bool   // первая строка содержит имена колонок
}

type WriteOptions struct {
	SheetName   string // имя листа; пусто - "Sheet1"
	WriteHeader bool   // записать имена колонок первой строкой
	SampleRows  int    // строк для оценки ширины колонок
}

type format int

const (
	formatUnknown format = iota
	formatXLSX
	formatCSV
)

func formatOf(ext string) format {
	switch strings.ToLower(ext) {
	case ".xlsx", ".xlsm", ".xltx", ".xltm":
		return formatXLSX
	case ".csv":
		return formatCSV
	}
	return formatUnknown
}

// Supported сообщает, умеет ли пакет читать и писать файл с таким расширением.
func Supported(path string) bool {
	return formatOf(filepath.Ext(path)) != formatUnknown
}

// ReadFile читает первый (или указанный) лист файла.
func ReadFile(path string, opts ReadOptions) (*table.Table, error) {
	if !Supported(path) {
		return nil, fmt.Errorf("%w: неподдерживаемый формат файла %s", table.ErrReadFailure, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка открытия файла %s: %w", table.ErrReadFailure, path, err)
	}
	defer f.Close()

	t, err := Read(f, filepath.Ext(path), opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Read читает таблицу из r; формат определяется расширением ext.
func Read(r io.Reader, ext string, opts ReadOptions) (*table.Table, error) {
	switch formatOf(ext) {
	case formatXLSX:
		return readXLSX(r, opts)
	case formatCSV:
		return readCSV(r, opts)
	}
	return nil, fmt.Errorf("%w: неподдерживаемый формат %q", table.ErrReadFailure, ext)
}

// WriteFile записывает таблицу в path. При ошибке недописанный файл удаляется.
func WriteFile(path string, t *table.Table, opts WriteOptions) (err error) {
	if !Supported(path) {
		return fmt.Errorf("%w: неподдерживаемый формат файла %s", table.ErrWriteFailure, path)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: ошибка создания файла %s: %w", table.ErrWriteFailure, path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("%w: ошибка закрытия файла %s: %w", table.ErrWriteFailure, path, cerr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	return Write(f, filepath.Ext(path), t, opts)
}

// Write записывает таблицу в w в формате ext.
func Write(w io.Writer, ext string, t *table.Table, opts WriteOptions) error {
	switch formatOf(ext) {
	case formatXLSX:
		return writeXLSX(w, t, opts)
	case formatCSV:
		return writeCSV(w, t, opts)
	}
	return fmt.Errorf("%w: неподдерживаемый формат %q", table.ErrWriteFailure, ext)
}

// columnNames строит имена колонок из строки заголовков: пустые имена
// заменяются буквой колонки, повторы получают суффикс _2, _3...
func columnNames(header []string, width int, letter func(int) string) []string {
	names := make([]string, width)
	seen := make(map[string]bool, width)
	next := make(map[string]int)
	for i := range names {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = letter(i + 1)
		}
		// сгенерированное имя тоже может совпасть с заголовком, ищем свободное
		for base := name; seen[name]; {
			k := max(next[base], 2)
			next[base] = k + 1
			name = fmt.Sprintf("%s_%d", base, k)
		}
		seen[name] = true
		names[i] = name
	}
	return names
}

// trimEmptyTail отбрасывает пустые строки в конце листа.
func trimEmptyTail(rows []table.Row) []table.Row {
	for len(rows) > 0 {
		last := rows[len(rows)-1]
		empty := true
		for _, v := range last {
			if v != nil {
				empty = false
				break
			}
		}
		if !empty {
			break
		}
		rows = rows[:len(rows)-1]
	}
	return rows
}

func build(columns []string, rows []table.Row) *table.Table {
	t := table.New(columns...)
	t.Rows = make([]table.Row, 0, len(rows))
	for _, r := range trimEmptyTail(rows) {
		t.Append(r...)
	}
	return t
}
