package sheet

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/ryabkov82/xlsx-splitter/internal/table"
	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet = "Sheet1"

	minColWidth  = 8
	maxColWidth  = 60
	dateColWidth = 18

	numFmtDate     = 14
	numFmtDateTime = 22
)

// cellDecoder приводит сырое значение ячейки к table.Value по типу ячейки и формату числа.
type cellDecoder struct {
	f          *excelize.File
	sheet      string
	date1904   bool
	styleDates map[int]bool
}

func readXLSX(r io.Reader, opts ReadOptions) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", table.ErrReadFailure, err)
	}
	defer f.Close()

	sheetList := f.GetSheetList()
	if len(sheetList) == 0 {
		return nil, fmt.Errorf("%w: в книге нет листов", table.ErrReadFailure)
	}
	sheet := sheetList[0]
	if opts.Sheet != "" {
		if idx, err := f.GetSheetIndex(opts.Sheet); err != nil || idx < 0 {
			return nil, fmt.Errorf("%w: лист %q не найден", table.ErrReadFailure, opts.Sheet)
		}
		sheet = opts.Sheet
	}

	dec := &cellDecoder{f: f, sheet: sheet, styleDates: make(map[int]bool)}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		dec.date1904 = *props.Date1904
	}

	rows, err := f.Rows(sheet)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка чтения строк листа %s: %w", table.ErrReadFailure, sheet, err)
	}
	defer rows.Close()

	var (
		header []string
		data   []table.Row
		width  int
	)
	rowInFile := 0
	for rows.Next() {
		rowInFile++
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, fmt.Errorf("%w: ошибка чтения строки %d: %w", table.ErrReadFailure, rowInFile, err)
		}

		if opts.HasHeaders && rowInFile == 1 {
			header = cols
			width = len(cols)
			continue
		}

		values := make(table.Row, len(cols))
		for i, raw := range cols {
			values[i] = dec.decode(i+1, rowInFile, raw)
		}
		data = append(data, values)
		width = max(width, len(cols))
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", table.ErrReadFailure, err)
	}

	return build(columnNames(header, width, columnLetter), data), nil
}

func columnLetter(n int) string {
	name, _ := excelize.ColumnNumberToName(n)
	return name
}

func (d *cellDecoder) decode(col, row int, raw string) table.Value {
	if raw == "" {
		return nil
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return raw
	}
	valType, err := d.f.GetCellType(d.sheet, cell)
	if err != nil {
		return raw
	}

	switch valType {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true")
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t
		}
		if t, err := time.Parse("2006-01-02T15:04:05", raw); err == nil {
			return t
		}
		return raw
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw
		}
		if d.isDate(cell) {
			if t, err := excelize.ExcelDateToTime(n, d.date1904); err == nil {
				return t
			}
		}
		return n
	default:
		return raw
	}
}

func (d *cellDecoder) isDate(cell string) bool {
	styleID, err := d.f.GetCellStyle(d.sheet, cell)
	if err != nil || styleID == 0 {
		return false
	}
	if v, ok := d.styleDates[styleID]; ok {
		return v
	}
	v := false
	if style, err := d.f.GetStyle(styleID); err == nil && style != nil {
		switch {
		case isNumericFormat(style.NumFmt):
		case isDateFormat(style.NumFmt):
			v = true
		case style.CustomNumFmt != nil:
			v = isDatePattern(*style.CustomNumFmt)
		}
	}
	d.styleDates[styleID] = v
	return v
}

func isDateFormat(fmtID int) bool {
	switch fmtID {
	case 14, 15, 16, 17, 22, 27, 30, 36, 45, 46, 47:
		return true
	}
	return false
}

func isNumericFormat(fmtID int) bool {
	switch fmtID {
	case 1, 2, 3, 4, 10, 37, 38, 39, 40:
		return true
	}
	return false
}

// isDatePattern распознает пользовательский формат даты вида "dd.mm.yyyy".
func isDatePattern(pattern string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for _, r := range strings.ToLower(pattern) {
		switch {
		case r == '"':
			inQuote = !inQuote
		case inQuote:
		case r == '[':
			inBracket = true
		case r == ']':
			inBracket = false
		case inBracket:
		default:
			b.WriteRune(r)
		}
	}
	p := b.String()
	if isNumericPattern(p) {
		return false
	}
	return strings.Contains(p, "yy") || strings.Contains(p, "dd") ||
		(strings.Contains(p, "m") && strings.Contains(p, "d")) || strings.Contains(p, "h:mm")
}

func isNumericPattern(p string) bool {
	return strings.ContainsAny(p, "0#") && !strings.ContainsAny(p, "ydhs")
}

func writeXLSX(w io.Writer, t *table.Table, opts WriteOptions) error {
	total := len(t.Rows)
	if opts.WriteHeader {
		total++
	}
	if total > excelize.TotalRows {
		return fmt.Errorf("%w: %d строк больше предела листа %d", table.ErrWriteFailure, total, excelize.TotalRows)
	}
	if len(t.Columns) > excelize.MaxColumns {
		return fmt.Errorf("%w: %d колонок больше предела листа %d", table.ErrWriteFailure, len(t.Columns), excelize.MaxColumns)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := opts.SheetName
	if sheet == "" {
		sheet = defaultSheet
	}
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			return fmt.Errorf("%w: %w", table.ErrWriteFailure, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("%w: ошибка создания стиля: %w", table.ErrWriteFailure, err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmtDate})
	if err != nil {
		return fmt.Errorf("%w: ошибка создания стиля: %w", table.ErrWriteFailure, err)
	}
	dateTimeStyle, err := f.NewStyle(&excelize.Style{NumFmt: numFmtDateTime})
	if err != nil {
		return fmt.Errorf("%w: ошибка создания стиля: %w", table.ErrWriteFailure, err)
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		return fmt.Errorf("%w: ошибка создания StreamWriter: %w", table.ErrWriteFailure, err)
	}

	// ширину колонок нужно задать до первой строки
	for i, width := range columnWidths(t, opts) {
		if err := sw.SetColWidth(i+1, i+1, width); err != nil {
			return fmt.Errorf("%w: %w", table.ErrWriteFailure, err)
		}
	}

	rowNum := 1
	if opts.WriteHeader && len(t.Columns) > 0 {
		headerRow := make([]interface{}, len(t.Columns))
		for i, h := range t.Columns {
			headerRow[i] = excelize.Cell{Value: h, StyleID: headerStyle}
		}
		if err := sw.SetRow("A1", headerRow); err != nil {
			return fmt.Errorf("%w: ошибка записи заголовков: %w", table.ErrWriteFailure, err)
		}
		rowNum++
	}

	for _, r := range t.Rows {
		rowData := make([]interface{}, len(r))
		for i, v := range r {
			switch val := v.(type) {
			case time.Time:
				styleID := dateTimeStyle
				if isMidnight(val) {
					styleID = dateStyle
				}
				rowData[i] = excelize.Cell{Value: val, StyleID: styleID}
			default:
				rowData[i] = val
			}
		}
		cell, _ := excelize.CoordinatesToCellName(1, rowNum)
		if err := sw.SetRow(cell, rowData); err != nil {
			return fmt.Errorf("%w: ошибка записи строки %d: %w", table.ErrWriteFailure, rowNum, err)
		}
		rowNum++
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("%w: ошибка финального flush: %w", table.ErrWriteFailure, err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("%w: ошибка сохранения книги: %w", table.ErrWriteFailure, err)
	}
	return nil
}

func isMidnight(t time.Time) bool {
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

// columnWidths оценивает ширину колонок по заголовку и первым SampleRows строкам.
func columnWidths(t *table.Table, opts WriteOptions) []float64 {
	maxColWidths := make(map[int]int, len(t.Columns))
	if opts.WriteHeader {
		for i, h := range t.Columns {
			maxColWidths[i] = utf8.RuneCountInString(h)
		}
	}
	for n, r := range t.Rows {
		if n >= opts.SampleRows {
			break
		}
		for i, v := range r {
			width := 0
			switch val := v.(type) {
			case nil:
			case time.Time:
				width = dateColWidth
			default:
				width = utf8.RuneCountInString(formatValue(val))
			}
			maxColWidths[i] = max(maxColWidths[i], width)
		}
	}

	widths := make([]float64, len(t.Columns))
	for i := range widths {
		widths[i] = float64(min(max(maxColWidths[i]+2, minColWidth), maxColWidth))
	}
	return widths
}
