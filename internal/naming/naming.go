// Package naming формирует имена выходных файлов.
package naming

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	dash        = "——"
	splitMarker = "拆分"
	mergeMarker = "合并"

	timestampLayout = "20060102150405"
	defaultExt      = ".xlsx"
)

// Stem возвращает имя файла без каталога и расширения.
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// SplitName: <имя>——拆分<i>of<N><расширение>, i начинается с 1.
func SplitName(original string, i, n int) string {
	return fmt.Sprintf("%s%s%s%dof%d%s", Stem(original), dash, splitMarker, i, n, ext(original))
}

// ArchiveName - имя архива с частями одного файла.
func ArchiveName(original string) string {
	return Stem(original) + dash + splitMarker + ".zip"
}

// MergeName: <имя>——合并<расширение>, если все источники - один и тот же файл,
// иначе <время>——合并<расширение>. Расширение берется у первого источника.
func MergeName(sources []string, now time.Time) string {
	if len(sources) == 0 {
		return now.Format(timestampLayout) + dash + mergeMarker + defaultExt
	}

	stem := Stem(sources[0])
	for _, s := range sources[1:] {
		if Stem(s) != stem {
			stem = now.Format(timestampLayout)
			break
		}
	}
	return stem + dash + mergeMarker + ext(sources[0])
}

// PartName: <путь без расширения>_part<k><расширение>.
func PartName(path string, part int) string {
	e := ext(path)
	return fmt.Sprintf("%s_part%d%s", strings.TrimSuffix(path, filepath.Ext(path)), part, e)
}

// PartPattern - glob для поиска кандидатов в части PartName. Glob пропускает
// и чужие файлы вроде merged_partners.csv, поэтому результат проверяется PartIndex.
func PartPattern(path string) string {
	return fmt.Sprintf("%s_part*%s", strings.TrimSuffix(path, filepath.Ext(path)), ext(path))
}

// PartIndex возвращает k, если file совпадает с PartName(path, k).
func PartIndex(path, file string) (int, bool) {
	rest, ok := strings.CutPrefix(file, strings.TrimSuffix(path, filepath.Ext(path))+"_part")
	if !ok {
		return 0, false
	}
	digits, ok := strings.CutSuffix(rest, ext(path))
	if !ok {
		return 0, false
	}
	return partNumber(digits)
}

// IsMergeOutput сообщает, создан ли файл командой объединения по умолчанию:
// <имя>——合并<расширение> или его часть <имя>——合并_part<k><расширение>.
func IsMergeOutput(path string) bool {
	stem := Stem(path)
	if i := strings.LastIndex(stem, "_part"); i >= 0 {
		if _, ok := partNumber(stem[i+len("_part"):]); ok {
			stem = stem[:i]
		}
	}
	return strings.HasSuffix(stem, dash+mergeMarker)
}

func partNumber(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	k, err := strconv.Atoi(s)
	if err != nil || k < 1 {
		return 0, false
	}
	return k, true
}

func ext(path string) string {
	e := filepath.Ext(path)
	if e == "" {
		return defaultExt
	}
	return e
}
