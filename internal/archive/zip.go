// Package archive упаковывает несколько выходных файлов в один ZIP.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"time"
)

// Builder последовательно добавляет записи в ZIP-архив.
type Builder struct {
	zw    *zip.Writer
	names map[string]struct{}
	now   time.Time
}

func NewBuilder(w io.Writer) *Builder {
	return &Builder{
		zw:    zip.NewWriter(w),
		names: make(map[string]struct{}),
		now:   time.Now(),
	}
}

// Add создает запись name и передает ее содержимое в write.
func (b *Builder) Add(name string, write func(io.Writer) error) error {
	if _, ok := b.names[name]; ok {
		return fmt.Errorf("запись %s уже есть в архиве", name)
	}
	b.names[name] = struct{}{}

	w, err := b.zw.CreateHeader(&zip.FileHeader{
		Name:     name,
		Method:   zip.Deflate,
		Modified: b.now,
	})
	if err != nil {
		return fmt.Errorf("ошибка создания записи %s: %w", name, err)
	}
	if err := write(w); err != nil {
		return fmt.Errorf("ошибка записи %s в архив: %w", name, err)
	}
	return nil
}

func (b *Builder) Close() error {
	return b.zw.Close()
}

// Entry - запись для WriteFile.
type Entry struct {
	Name  string
	Write func(io.Writer) error
}

// WriteFile создает архив path из entries. При ошибке файл удаляется.
func WriteFile(path string, entries []Entry) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("ошибка создания архива %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	b := NewBuilder(f)
	for _, e := range entries {
		if err = b.Add(e.Name, e.Write); err != nil {
			return err
		}
	}
	return b.Close()
}
