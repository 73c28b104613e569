package table

import (
	"errors"
	"slices"
)

// CombineOptions управляет объединением таблиц.
type CombineOptions struct {
	// Columns - выбор колонок; пусто - объединение колонок всех входов.
	Columns []string
	// Strict требует одинаковый упорядоченный набор колонок у всех входов.
	Strict bool
	// FillMissing разрешает пустые значения для колонок, которых нет во входе.
	FillMissing bool
}

// ProjectColumns возвращает таблицу только с указанными колонками в порядке выбора.
func ProjectColumns(t *Table, columns []string) (*Table, error) {
	if t == nil {
		return nil, &Error{Kind: ErrEmptyInput, Table: -1}
	}
	if err := checkSelection(columns); err != nil {
		return nil, err
	}
	idx, err := columnIndexes(t, columns, 0, false)
	if err != nil {
		return nil, err
	}
	out := New(columns...)
	out.Rows = projectRows(t.Rows, idx, nil)
	return out, nil
}

// CombineTables склеивает строки таблиц в порядке входа, таблица за таблицей.
// При ошибке частичный результат не возвращается.
func CombineTables(tables []*Table, opts CombineOptions) (*Table, error) {
	if len(tables) == 0 {
		return nil, &Error{Kind: ErrEmptyInput, Table: -1, Msg: "список таблиц пуст"}
	}
	for i, t := range tables {
		if t == nil {
			return nil, &Error{Kind: ErrEmptyInput, Table: i, Msg: "пустая таблица во входе"}
		}
	}

	if opts.Strict {
		first := tables[0].Columns
		for i, t := range tables[1:] {
			if !slices.Equal(first, t.Columns) {
				return nil, schemaMismatch(firstDifference(first, t.Columns), i+1)
			}
		}
	}

	columns := opts.Columns
	if len(columns) > 0 {
		if err := checkSelection(columns); err != nil {
			return nil, err
		}
	} else {
		columns = unionColumns(tables)
	}

	total := 0
	plans := make([][]int, len(tables))
	for i, t := range tables {
		idx, err := columnIndexes(t, columns, i, opts.FillMissing)
		if err != nil {
			if len(opts.Columns) == 0 {
				// без явного выбора отсутствие колонки - расхождение схем
				var e *Error
				if errors.As(err, &e) {
					return nil, schemaMismatch(e.Column, e.Table)
				}
			}
			return nil, err
		}
		plans[i] = idx
		total += len(t.Rows)
	}

	out := New(columns...)
	out.Rows = make([]Row, 0, total)
	for i, t := range tables {
		out.Rows = projectRows(t.Rows, plans[i], out.Rows)
	}
	return out, nil
}

// columnIndexes сопоставляет выбранные колонки позициям в таблице; -1 - пустая колонка.
func columnIndexes(t *Table, columns []string, tableIdx int, fill bool) ([]int, error) {
	idx := make([]int, len(columns))
	for i, c := range columns {
		pos := t.ColumnIndex(c)
		if pos < 0 && !fill {
			return nil, invalidColumn(c, tableIdx)
		}
		idx[i] = pos
	}
	return idx, nil
}

func projectRows(rows []Row, idx []int, dst []Row) []Row {
	if dst == nil {
		dst = make([]Row, 0, len(rows))
	}
	for _, r := range rows {
		row := make(Row, len(idx))
		for j, pos := range idx {
			if pos >= 0 && pos < len(r) {
				row[j] = r[pos]
			}
		}
		dst = append(dst, row)
	}
	return dst
}

func unionColumns(tables []*Table) []string {
	var columns []string
	seen := make(map[string]struct{})
	for _, t := range tables {
		for _, c := range t.Columns {
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			columns = append(columns, c)
		}
	}
	return columns
}

func firstDifference(a, b []string) string {
	for i := 0; i < len(a) || i < len(b); i++ {
		switch {
		case i >= len(a):
			return b[i]
		case i >= len(b):
			return a[i]
		case a[i] != b[i]:
			return a[i]
		}
	}
	return ""
}
