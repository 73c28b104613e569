package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ryabkov82/xlsx-splitter/internal/config"
	"github.com/ryabkov82/xlsx-splitter/internal/processor"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Output struct {
	Success     bool     `json:"success"`
	RunID       string   `json:"run_id,omitempty"`
	OutputFiles []string `json:"output_files,omitempty"`
	PartRows    []int    `json:"part_rows,omitempty"`
	Error       string   `json:"error,omitempty"`
	Duration    string   `json:"duration"`
	RowCount    int64    `json:"row_count,omitempty"`
}

// app - состояние одного запуска команды.
type app struct {
	out      io.Writer
	start    time.Time
	cfgFile  string
	verbose  bool
	cfg      *config.Config
	logger   *zap.Logger
	reported bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Stdout, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}

// execute запускает команду с аргументами args. Ошибки, которые не дошли
// до обработчиков команд (аргументы, флаги), тоже выводятся в JSON.
func execute(ctx context.Context, out io.Writer, args []string) error {
	a := &app{out: out, start: time.Now()}
	cmd := newRootCmd(a)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(ctx)
	if err != nil && !a.reported {
		a.fail(err)
	}
	return err
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "xlsx-splitter",
		Short: "Разбиение и объединение файлов XLSX/CSV",
		Long: `xlsx-splitter делит таблицу на N частей с почти равным числом строк
или объединяет несколько таблиц в одну. Результат выводится в формате JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.cfgFile)
			if err == nil {
				err = applyFlags(cmd, cfg)
			}
			if err == nil {
				err = cfg.Validate()
			}
			if err != nil {
				a.fail(fmt.Errorf("Ошибка конфигурации: %w", err))
				return err
			}
			a.cfg = cfg

			zc := zap.NewProductionConfig()
			if a.verbose {
				zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			if a.logger, err = zc.Build(); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "файл конфигурации YAML")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "подробный журнал")
	pf.Bool("has-headers", false, "исходные файлы содержат заголовки")
	pf.StringSlice("columns", nil, "оставить только эти колонки, в указанном порядке")
	pf.String("sheet", "", "лист для чтения (по умолчанию первый)")
	pf.Int("sample", 1000, "количество анализируемых строк для ширины колонок")
	pf.String("out-dir", ".", "папка для результатов")

	rootCmd.AddCommand(newSplitCmd(a), newMergeCmd(a))
	return rootCmd
}

func newSplitCmd(a *app) *cobra.Command {
	var parts int

	cmd := &cobra.Command{
		Use:   "split <file>",
		Short: "Разбить файл на N частей",
		Long: `Делит строки файла на N смежных частей; первые (строк mod N) частей
на одну строку длиннее. Части называются <имя>——拆分<i>of<N>.<расширение>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := processor.New(a.cfg, a.logger)
			res, err := p.Split(cmd.Context(), processor.SplitRequest{Input: args[0], Parts: parts})
			if err != nil {
				a.fail(fmt.Errorf("Ошибка разбиения: %w", err))
				return err
			}
			a.succeed(res)
			return nil
		},
	}

	cmd.Flags().IntVarP(&parts, "parts", "n", 2, "количество частей")
	cmd.Flags().Bool("zip", false, "упаковать части в ZIP-архив")
	return cmd
}

func newMergeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge [files...]",
		Short: "Объединить файлы в один",
		Long: `Склеивает строки файлов в порядке перечисления (или всех файлов папки --dir,
по алфавиту). Без --out результат называется <имя>——合并.<расширение>
или <время>——合并.<расширение>, если исходные файлы разные.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := processor.New(a.cfg, a.logger)
			res, err := p.Merge(cmd.Context(), processor.MergeRequest{Inputs: args})
			if err != nil {
				a.fail(fmt.Errorf("Ошибка объединения: %w", err))
				return err
			}
			a.succeed(res)
			return nil
		},
	}

	f := cmd.Flags()
	f.String("dir", "", "папка с исходными файлами")
	f.String("out", "", "результирующий файл")
	f.Bool("strict", false, "требовать одинаковые колонки во всех файлах")
	f.Bool("fill-missing", false, "оставлять пустыми колонки, которых нет в файле")
	f.Bool("add-source", false, "добавлять колонку с именем файла")
	f.Int64("max-row", 0, "максимальное количество строк в объединенном файле (0 - без ограничения)")
	f.Int("workers", 4, "количество файлов, читаемых одновременно")
	return cmd
}

// applyFlags переносит в конфигурацию только явно заданные флаги,
// чтобы они не затирали значения из файла.
func applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	var err error
	set := func(name string, apply func() error) {
		if err == nil && flags.Lookup(name) != nil && flags.Changed(name) {
			err = apply()
		}
	}

	set("has-headers", func() (e error) { cfg.HasHeaders, e = flags.GetBool("has-headers"); return })
	set("columns", func() (e error) { cfg.Columns, e = flags.GetStringSlice("columns"); return })
	set("sheet", func() (e error) { cfg.Sheet, e = flags.GetString("sheet"); return })
	set("sample", func() (e error) { cfg.SampleRows, e = flags.GetInt("sample"); return })
	set("out-dir", func() (e error) { cfg.OutputDir, e = flags.GetString("out-dir"); return })
	set("zip", func() (e error) { cfg.Zip, e = flags.GetBool("zip"); return })
	set("dir", func() (e error) { cfg.InputDir, e = flags.GetString("dir"); return })
	set("out", func() (e error) { cfg.OutputPath, e = flags.GetString("out"); return })
	set("strict", func() (e error) { cfg.Strict, e = flags.GetBool("strict"); return })
	set("fill-missing", func() (e error) { cfg.FillMissing, e = flags.GetBool("fill-missing"); return })
	set("add-source", func() (e error) { cfg.AddSourceFile, e = flags.GetBool("add-source"); return })
	set("max-row", func() (e error) { cfg.MaxRowPerFile, e = flags.GetInt64("max-row"); return })
	set("workers", func() (e error) { cfg.Workers, e = flags.GetInt("workers"); return })
	return err
}

func (a *app) succeed(res *processor.Result) {
	a.emitJSON(Output{
		Success:     true,
		RunID:       res.RunID,
		OutputFiles: res.OutputFiles,
		PartRows:    res.PartRows,
		RowCount:    res.RowCount,
		Duration:    time.Since(a.start).String(),
	})
}

func (a *app) fail(err error) {
	a.reported = true
	a.emitJSON(Output{
		Success:  false,
		Error:    err.Error(),
		Duration: time.Since(a.start).String(),
	})
}

func (a *app) emitJSON(out Output) {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ") // для красивого вывода (опционально)
	if err := enc.Encode(out); err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка вывода JSON: %v\n", err)
	}
}
