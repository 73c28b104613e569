package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	InputDir      string   `yaml:"input_dir"`
	OutputPath    string   `yaml:"output"` // результирующий файл; пусто - имя по исходным файлам
	OutputDir     string   `yaml:"output_dir"`
	Sheet         string   `yaml:"sheet"`        // лист для чтения; пусто - первый
	SampleRows    int      `yaml:"sample_rows"`  // строк для оценки ширины колонок
	AddSourceFile bool     `yaml:"add_source"`   // добавлять колонку с именем файла
	HasHeaders    bool     `yaml:"has_headers"`  // Флаг наличия заголовков в исходных файлах
	MaxRowPerFile int64    `yaml:"max_row"`      // максимальное количество строк в объединенном файле
	Columns       []string `yaml:"columns"`      // выбор колонок
	Strict        bool     `yaml:"strict"`       // одинаковые колонки во всех файлах
	FillMissing   bool     `yaml:"fill_missing"` // пустые значения вместо ошибки для отсутствующих колонок
	Zip           bool     `yaml:"zip"`          // упаковать части в архив
	Workers       int      `yaml:"workers"`      // параллельное чтение входных файлов
}

// Default возвращает конфигурацию со значениями по умолчанию.
func Default() *Config {
	return &Config{
		OutputDir:  ".",
		SampleRows: 1000,
		Workers:    4,
	}
}

// Load читает YAML-файл поверх значений по умолчанию.
// Пустой путь возвращает значения по умолчанию.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения конфигурации %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("ошибка разбора конфигурации %s: %w", path, err)
	}
	return cfg, nil
}

// Validate проверяет значения и нормализует пути.
func (c *Config) Validate() error {
	if c.SampleRows < 0 {
		return errors.New("sample_rows не может быть отрицательным")
	}
	if c.MaxRowPerFile < 0 {
		return errors.New("max_row не может быть отрицательным")
	}
	if c.Workers < 1 {
		c.Workers = 1
	}

	// Нормализация путей
	if c.InputDir != "" {
		c.InputDir = filepath.Clean(c.InputDir)
	}
	if c.OutputPath != "" {
		c.OutputPath = filepath.Clean(c.OutputPath)
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}
	c.OutputDir = filepath.Clean(c.OutputDir)

	return nil
}
