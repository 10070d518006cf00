package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/csvio"
	"github.com/noah-isme/campus-routine-api/internal/routine"
	"github.com/noah-isme/campus-routine-api/pkg/config"
	"github.com/noah-isme/campus-routine-api/pkg/logger"
)

type rootOptions struct {
	logLevel    string
	departments []string
	existing    []string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "routine-cli",
		Short:         "Generate and repair class routines from CSV files",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "warn", "log level")
	cmd.PersistentFlags().StringSliceVar(&opts.departments, "departments", nil, "department table entries CODE:Name[:technology]")
	cmd.PersistentFlags().StringArrayVar(&opts.existing, "existing", nil, "stored routine as technology=path, repeatable")

	cmd.AddCommand(newGenerateCmd(opts), newRefactorCmd(opts), newCheckCmd(opts))
	return cmd
}

func (o *rootOptions) logger() *zap.Logger {
	l, err := logger.Build(config.LogConfig{Level: o.logLevel, Format: "console"}, false)
	if err != nil {
		return zap.NewNop()
	}
	return l
}

func (o *rootOptions) departmentTable() (*routine.DepartmentTable, error) {
	return routine.ParseDepartments(o.departments)
}

func (o *rootOptions) existingRoutines() ([]routine.Routine, error) {
	return readRoutineSpecs(o.existing)
}

// readRoutineSpecs loads technology=path pairs. The technology id becomes
// the routine id.
func readRoutineSpecs(specs []string) ([]routine.Routine, error) {
	out := make([]routine.Routine, 0, len(specs))
	for _, spec := range specs {
		tech, path, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("routine %q must be technology=path", spec)
		}
		key, err := routine.ParseTechnology(tech)
		if err != nil {
			return nil, err
		}
		r, err := csvio.ReadFile(path, func(in io.Reader) (routine.Routine, error) {
			return csvio.ReadRoutine(in, key.String(), key)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func readOptional[T any](path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	return csvio.ReadFile(path, read)
}

// writeRoutine writes to path, or to w when path is empty or "-".
func writeRoutine(w io.Writer, path string, r routine.Routine) error {
	if path == "" || path == "-" {
		return csvio.WriteRoutine(w, r)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := csvio.WriteRoutine(f, r); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
