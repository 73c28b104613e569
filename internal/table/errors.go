package table

import (
	"errors"
	"fmt"
)

// Виды ошибок ядра. Проверяются через errors.Is.
var (
	ErrInvalidArgument = errors.New("некорректный аргумент")
	ErrEmptyInput      = errors.New("нет входных данных")
	ErrInvalidColumn   = errors.New("колонка отсутствует в таблице")
	ErrSchemaMismatch  = errors.New("наборы колонок не совпадают")
	ErrReadFailure     = errors.New("ошибка чтения")
	ErrWriteFailure    = errors.New("ошибка записи")
)

// Error уточняет вид ошибки: колонка и номер входной таблицы (-1, если не применимо).
type Error struct {
	Kind   error
	Column string
	Table  int
	Msg    string
}

func (e *Error) Error() string {
	switch {
	case e.Column != "" && e.Table >= 0:
		return fmt.Sprintf("%v: %q (таблица %d)", e.Kind, e.Column, e.Table)
	case e.Column != "":
		return fmt.Sprintf("%v: %q", e.Kind, e.Column)
	case e.Msg != "":
		return fmt.Sprintf("%v: %s", e.Kind, e.Msg)
	}
	return e.Kind.Error()
}

func (e *Error) Unwrap() error { return e.Kind }

func invalidArgument(format string, args ...any) error {
	return &Error{Kind: ErrInvalidArgument, Table: -1, Msg: fmt.Sprintf(format, args...)}
}

func invalidColumn(column string, table int) error {
	return &Error{Kind: ErrInvalidColumn, Column: column, Table: table}
}

func schemaMismatch(column string, table int) error {
	return &Error{Kind: ErrSchemaMismatch, Column: column, Table: table}
}
