package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/campus-routine-api/internal/csvio"
	"github.com/noah-isme/campus-routine-api/internal/routine"
)

type generateOptions struct {
	rooms       string
	loads       string
	constraints string
	department  string
	semester    string
	shift       string
	group       string
	combine     bool
	reduceLab   bool
	seed        int64
	out         string
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Place a teaching load into one routine",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd, root, opts)
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.rooms, "rooms", "", "rooms CSV")
	f.StringVar(&opts.loads, "loads", "", "teaching load CSV")
	f.StringVar(&opts.constraints, "constraints", "", "teacher constraint CSV")
	f.StringVar(&opts.department, "department", "", "target department")
	f.StringVar(&opts.semester, "semester", "", "target semester")
	f.StringVar(&opts.shift, "shift", "1st", "target shift")
	f.StringVar(&opts.group, "group", "", "target group")
	f.BoolVar(&opts.combine, "combine", false, "join matching sessions of other routines")
	f.BoolVar(&opts.reduceLab, "reduce-lab", false, "shorten lab blocks when full labs do not fit")
	f.Int64Var(&opts.seed, "seed", 0, "random seed, 0 draws a fresh one")
	f.StringVar(&opts.out, "out", "-", "output routine CSV")
	for _, name := range []string{"rooms", "loads", "department", "semester", "group"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runGenerate(cmd *cobra.Command, root *rootOptions, opts *generateOptions) error {
	log := root.logger()
	defer log.Sync() //nolint:errcheck

	departments, err := root.departmentTable()
	if err != nil {
		return err
	}
	rooms, err := csvio.ReadFile(opts.rooms, csvio.ReadRooms)
	if err != nil {
		return err
	}
	loads, err := csvio.ReadFile(opts.loads, csvio.ReadLoads)
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

	key := routine.RoutineKey{
		Department: opts.department,
		Semester:   opts.semester,
		Shift:      routine.NormalizeShift(opts.shift),
		Group:      opts.group,
	}
	target := routine.Routine{ID: key.String(), Department: key.Department, Semester: key.Semester, Shift: key.Shift, Group: key.Group}

	genOpts := []routine.Option{routine.WithLogger(log), routine.WithDepartments(departments)}
	if opts.seed != 0 {
		genOpts = append(genOpts, routine.WithSeed(opts.seed))
	}
	result := routine.NewGenerator(genOpts...).Generate(routine.GenerateInput{
		Target:      target,
		Loads:       loads,
		Constraints: constraints,
		Routines:    existing,
		Rooms:       rooms,
		Options:     routine.Options{CombineClasses: opts.combine, ReduceLab: opts.reduceLab},
	})
	target.Days = result.Days

	if err := writeRoutine(cmd.OutOrStdout(), opts.out, target); err != nil {
		return err
	}
	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "placed %d theory and %d lab blocks, %d unplaced\n", result.Stats.PlacedTheory, result.Stats.PlacedLabs, len(result.Unplaced))
	for _, u := range result.Unplaced {
		fmt.Fprintf(errOut, "  unplaced %s %s (%s, %d periods): %s\n", u.Type, u.Subject, u.Teacher, u.Duration, u.Reason)
	}
	log.Debug("routine generated", zap.String("routine", key.String()), zap.Int("merges", len(result.Merges)))
	return nil
}
