package sheet

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ryabkov82/xlsx-splitter/internal/table"
)

const utf8BOM = "\ufeff"

// readCSV читает CSV целиком; значения остаются строками, пустые поля - nil.
func readCSV(r io.Reader, opts ReadOptions) (*table.Table, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		header []string
		data   []table.Row
		width  int
	)
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", table.ErrReadFailure, err)
		}
		if first && len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], utf8BOM)
		}

		if opts.HasHeaders && first {
			first = false
			header = record
			width = len(record)
			continue
		}
		first = false

		values := make(table.Row, len(record))
		for i, s := range record {
			if s != "" {
				values[i] = s
			}
		}
		data = append(data, values)
		width = max(width, len(record))
	}

	return build(columnNames(header, width, columnLetter), data), nil
}

func writeCSV(w io.Writer, t *table.Table, opts WriteOptions) error {
	cw := csv.NewWriter(w)
	if opts.WriteHeader && len(t.Columns) > 0 {
		if err := cw.Write(t.Columns); err != nil {
			return fmt.Errorf("%w: ошибка записи заголовков: %w", table.ErrWriteFailure, err)
		}
	}

	record := make([]string, len(t.Columns))
	for n, r := range t.Rows {
		for i := range record {
			record[i] = ""
			if i < len(r) {
				record[i] = formatValue(r[i])
			}
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("%w: ошибка записи строки %d: %w", table.ErrWriteFailure, n+1, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("%w: %w", table.ErrWriteFailure, err)
	}
	return nil
}

// formatValue - текстовое представление значения для CSV.
func formatValue(v table.Value) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		if isMidnight(val) {
			return val.Format(time.DateOnly)
		}
		return val.Format(time.DateTime)
	default:
		return fmt.Sprint(val)
	}
}
