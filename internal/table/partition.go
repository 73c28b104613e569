package table

import "slices"

// Range - полуинтервал индексов строк [Start, End).
type Range struct {
	Start int
	End   int
}

// Len возвращает длину диапазона.
func (r Range) Len() int { return r.End - r.Start }

// PlanPartitions делит totalRows строк на numSplits смежных диапазонов.
// Первые totalRows%numSplits диапазонов на одну строку длиннее остальных.
func PlanPartitions(totalRows, numSplits int) ([]Range, error) {
	if numSplits <= 0 {
		return nil, invalidArgument("количество частей должно быть положительным: %d", numSplits)
	}
	if totalRows < 0 {
		return nil, invalidArgument("отрицательное количество строк: %d", totalRows)
	}

	base := totalRows / numSplits
	remainder := totalRows % numSplits

	plan := make([]Range, numSplits)
	start := 0
	for i := range plan {
		size := base
		if i < remainder {
			size++
		}
		plan[i] = Range{Start: start, End: start + size}
		start += size
	}
	return plan, nil
}

// PlanByMaxRows подбирает минимальное число частей, при котором
// ни одна часть не длиннее maxRows, и делит строки поровну.
func PlanByMaxRows(totalRows, maxRows int) ([]Range, error) {
	if maxRows <= 0 {
		return nil, invalidArgument("максимум строк должен быть положительным: %d", maxRows)
	}
	n := (totalRows + maxRows - 1) / maxRows
	if n < 1 {
		n = 1
	}
	return PlanPartitions(totalRows, n)
}

// SplitTable делит таблицу на numSplits частей по плану PlanPartitions.
// Части не разделяют память строк с исходной таблицей.
func SplitTable(t *Table, numSplits int) ([]*Table, error) {
	if t == nil {
		return nil, &Error{Kind: ErrEmptyInput, Table: -1}
	}
	plan, err := PlanPartitions(len(t.Rows), numSplits)
	if err != nil {
		return nil, err
	}
	return Slice(t, plan)
}

// Slice вырезает из таблицы части по готовому плану.
func Slice(t *Table, plan []Range) ([]*Table, error) {
	parts := make([]*Table, len(plan))
	for i, r := range plan {
		if r.Start < 0 || r.End < r.Start || r.End > len(t.Rows) {
			return nil, invalidArgument("диапазон [%d, %d) вне таблицы из %d строк", r.Start, r.End, len(t.Rows))
		}
		part := New(t.Columns...)
		part.Rows = make([]Row, 0, r.Len())
		for _, row := range t.Rows[r.Start:r.End] {
			part.Rows = append(part.Rows, slices.Clone(row))
		}
		parts[i] = part
	}
	return parts, nil
}
