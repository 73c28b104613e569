// Package table содержит модель таблицы и чистые операции над ней:
// разбиение строк на части, проекцию колонок и объединение таблиц.
// Пакет не выполняет ввод-вывод и не пишет логи.
package table

import (
	"slices"
	"time"
)

// Value - скалярное значение ячейки: nil (пусто), string, float64, bool или time.Time.
type Value any

// Row - значения строки в порядке колонок таблицы.
type Row []Value

// Table - упорядоченные строки с общим набором именованных колонок.
// Порядок строк значим и сохраняется всеми операциями.
type Table struct {
	Columns []string
	Rows    []Row
}

// New создает пустую таблицу с указанными колонками.
func New(columns ...string) *Table {
	return &Table{Columns: slices.Clone(columns)}
}

// Append добавляет строку. Короткая строка дополняется пустыми значениями,
// лишние значения отбрасываются.
func (t *Table) Append(values ...Value) {
	row := make(Row, len(t.Columns))
	copy(row, values)
	t.Rows = append(t.Rows, row)
}

// Len возвращает количество строк.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex возвращает позицию колонки или -1.
func (t *Table) ColumnIndex(name string) int {
	return slices.Index(t.Columns, name)
}

// Clone возвращает независимую копию таблицы.
func (t *Table) Clone() *Table {
	out := &Table{
		Columns: slices.Clone(t.Columns),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = slices.Clone(r)
	}
	return out
}

// WithColumn возвращает копию таблицы с дополнительной колонкой,
// заполненной одним значением (например, именем исходного файла).
func (t *Table) WithColumn(name string, v Value) (*Table, error) {
	if name == "" {
		return nil, invalidArgument("пустое имя колонки")
	}
	if t.ColumnIndex(name) >= 0 {
		return nil, invalidArgument("колонка %q уже существует", name)
	}
	out := &Table{
		Columns: append(slices.Clone(t.Columns), name),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		row := make(Row, len(r)+1)
		copy(row, r)
		row[len(r)] = v
		out.Rows[i] = row
	}
	return out, nil
}

// Equal сравнивает колонки и значения двух таблиц.
func (t *Table) Equal(o *Table) bool {
	if t == nil || o == nil {
		return t == o
	}
	if !slices.Equal(t.Columns, o.Columns) || len(t.Rows) != len(o.Rows) {
		return false
	}
	for i := range t.Rows {
		if !slices.EqualFunc(t.Rows[i], o.Rows[i], valueEqual) {
			return false
		}
	}
	return true
}

func valueEqual(a, b Value) bool {
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return a == b
}

func checkSelection(columns []string) error {
	if len(columns) == 0 {
		return invalidArgument("пустой список колонок")
	}
	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if _, ok := seen[c]; ok {
			return invalidArgument("колонка %q указана дважды", c)
		}
		seen[c] = struct{}{}
	}
	return nil
}
