package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/campus-routine-api/internal/csvio"
	"github.com/noah-isme/campus-routine-api/internal/routine"
)

type refactorOptions struct {
	routine     string
	rooms       string
	constraints string
	department  string
	reduceLab   bool
	seed        int64
	out         string
}

func newRefactorCmd(root *rootOptions) *cobra.Command {
	opts := &refactorOptions{}
	cmd := &cobra.Command{
		Use:   "refactor",
		Short: "Repair clashes and missing rooms in a stored routine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRefactor(cmd, root, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.routine, "routine", "", "routine to repair as technology=path")
	f.StringVar(&opts.rooms, "rooms", "", "rooms CSV")
	f.StringVar(&opts.constraints, "constraints", "", "teacher constraint CSV")
	f.StringVar(&opts.department, "department", "", "only repair when the routine belongs to this department")
	f.BoolVar(&opts.reduceLab, "reduce-lab", false, "shorten lab blocks")
	f.Int64Var(&opts.seed, "seed", 0, "random seed, 0 draws a fresh one")
	f.StringVar(&opts.out, "out", "-", "output routine CSV")
	_ = cmd.MarkFlagRequired("routine")
	_ = cmd.MarkFlagRequired("rooms")
	return cmd
}

func runRefactor(cmd *cobra.Command, root *rootOptions, opts *refactorOptions) error {
	log := root.logger()
	defer log.Sync() //nolint:errcheck

	departments, err := root.departmentTable()
	if err != nil {
		return err
	}
	targets, err := readRoutineSpecs([]string{opts.routine})
	if err != nil {
		return err
	}
	rooms, err := csvio.ReadFile(opts.rooms, csvio.ReadRooms)
	if err != nil {
		return err
	}
	constraints, err := readOptional(opts.constraints, csvio.ReadConstraints)
	if err != nil {
		return err
	}
	existing, err := root.existingRoutines()
	if err != nil {
		return err
	}

	genOpts := []routine.Option{routine.WithLogger(log), routine.WithDepartments(departments)}
	if opts.seed != 0 {
		genOpts = append(genOpts, routine.WithSeed(opts.seed))
	}
	result := routine.NewGenerator(genOpts...).Refactor(targets, routine.RefactorConfig{
		ReduceLab:        opts.reduceLab,
		TargetDepartment: opts.department,
		Rooms:            rooms,
		Routines:         append(existing, targets...),
		Constraints:      constraints,
	})

	if err := writeRoutine(cmd.OutOrStdout(), opts.out, result.Routines[0]); err != nil {
		return err
	}
	errOut := cmd.ErrOrStderr()
	fmt.Fprintln(errOut, result.Message)
	for _, c := range result.Log {
		fmt.Fprintf(errOut, "  %s %s %s: %s -> %s\n", c.Action, c.Day, c.SessionID, c.From, c.To)
	}
	return nil
}
