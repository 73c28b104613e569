package processor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ryabkov82/xlsx-splitter/internal/naming"
	"github.com/ryabkov82/xlsx-splitter/internal/sheet"
)

// collectInputs возвращает поддерживаемые файлы папки dir (рекурсивно), отсортированные по пути.
// Временные файлы Excel (~$name.xlsx) и результаты прошлых объединений (<имя>——合并.xlsx)
// пропускаются.
func collectInputs(dir string) ([]string, error) {
	inputFiles := []string{}

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !sheet.Supported(path) || strings.HasPrefix(info.Name(), "~$") {
			return nil
		}
		if naming.IsMergeOutput(path) {
			return nil
		}
		inputFiles = append(inputFiles, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка при обходе папки: %w", err)
	}

	sort.Strings(inputFiles)
	return inputFiles, nil
}

// removeExistingPartFiles удаляет части output, оставшиеся от прошлых запусков.
func removeExistingPartFiles(output string) error {
	files, err := filepath.Glob(naming.PartPattern(output))
	if err != nil {
		return fmt.Errorf("ошибка поиска файлов по шаблону: %v", err)
	}

	for _, file := range files {
		if _, ok := naming.PartIndex(output, file); !ok {
			continue
		}
		if err := os.Remove(file); err != nil {
			return fmt.Errorf("ошибка удаления файла %s: %v", file, err)
		}
	}
	return nil
}

// excludeOutputs убирает из входов результат объединения и его части.
func excludeOutputs(inputs []string, output string) []string {
	output = filepath.Clean(output)

	kept := inputs[:0:0]
	for _, path := range inputs {
		path = filepath.Clean(path)
		if path == output {
			continue
		}
		if _, ok := naming.PartIndex(output, path); ok {
			continue
		}
		kept = append(kept, path)
	}
	return kept
}

// removeStaleOutput удаляет цельный результат прошлого запуска, когда
// текущий запуск пишет части.
func removeStaleOutput(output string) error {
	if err := os.Remove(output); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("ошибка удаления файла %s: %v", output, err)
	}
	return nil
}
