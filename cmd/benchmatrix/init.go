package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"benchmatrix/internal/benchmark"
	"benchmatrix/internal/plan"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
)

var askOneFunc = survey.AskOne

var (
	initOut   string
	initForce bool
)

// Prompt messages, shared with tests.
const (
	promptName     = "Matrix name:"
	promptCommand  = "Benchmark executable:"
	promptArgs     = "Extra arguments (space separated):"
	promptKinds    = "Dataset kinds (KIND=LABEL, comma separated):"
	promptSizes    = "Input sizes (comma separated):"
	promptTrials   = "Trials per point:"
	promptVariants = "Input variants:"
)

var knownVariants = []benchmark.Variant{benchmark.VariantRandom, benchmark.VariantReversed}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Interactively create a plan file",
	Long: `Asks for a benchmark executable, its dataset kinds, input sizes and trials,
and writes a plan file that "benchmatrix run --plan" accepts.`,
	Args: cobra.NoArgs,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVarP(&initOut, "out", "o", "plan.yaml", "Path of the plan file to write")
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Overwrite an existing plan file")
}

func runInit(cmd *cobra.Command, args []string) error {
	if !initForce {
		if _, err := os.Stat(initOut); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", initOut)
		}
	}

	ms, err := askMatrix()
	if err != nil {
		return err
	}

	f := plan.File{Matrices: []plan.MatrixSpec{ms}}
	if _, err := f.Plans(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := plan.Encode(&buf, f); err != nil {
		return err
	}
	if dir := filepath.Dir(initOut); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(initOut, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write plan file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Plan written to %s\n", initOut)
	fmt.Fprintf(cmd.OutOrStdout(), "Run it with: benchmatrix run --plan %s\n", initOut)
	return nil
}

func askMatrix() (plan.MatrixSpec, error) {
	var name, command, extra, kinds, sizes, trials string
	var variants []string

	if err := askOneFunc(&survey.Input{Message: promptName, Default: "custom"}, &name); err != nil {
		return plan.MatrixSpec{}, err
	}
	if err := askOneFunc(&survey.Input{Message: promptCommand}, &command, survey.WithValidator(survey.Required)); err != nil {
		return plan.MatrixSpec{}, err
	}
	if err := askOneFunc(&survey.Input{Message: promptArgs}, &extra); err != nil {
		return plan.MatrixSpec{}, err
	}
	if err := askOneFunc(&survey.Input{Message: promptKinds, Default: "ARRAY=ARRAY,LIST=LIST"}, &kinds); err != nil {
		return plan.MatrixSpec{}, err
	}
	if err := askOneFunc(&survey.Input{Message: promptSizes, Default: "1000,10000,100000"}, &sizes); err != nil {
		return plan.MatrixSpec{}, err
	}
	if err := askOneFunc(&survey.Input{Message: promptTrials, Default: "3"}, &trials); err != nil {
		return plan.MatrixSpec{}, err
	}
	options := make([]string, len(knownVariants))
	for i, v := range knownVariants {
		options[i] = v.Name
	}
	if err := askOneFunc(&survey.MultiSelect{Message: promptVariants, Options: options}, &variants); err != nil {
		return plan.MatrixSpec{}, err
	}

	ms := plan.MatrixSpec{Name: strings.TrimSpace(name)}
	target := plan.TargetSpec{
		Name:    filepath.Base(strings.TrimSpace(command)),
		Command: strings.TrimSpace(command),
		Args:    strings.Fields(extra),
	}

	var err error
	if target.Kinds, err = parseKinds(kinds); err != nil {
		return plan.MatrixSpec{}, err
	}
	if ms.Sizes, err = parseSizes(sizes); err != nil {
		return plan.MatrixSpec{}, err
	}
	if ms.Trials, err = cast.ToIntE(strings.TrimSpace(trials)); err != nil {
		return plan.MatrixSpec{}, &benchmark.ConfigurationError{Reason: fmt.Sprintf("invalid trial count %q", trials)}
	}
	for _, v := range knownVariants {
		if slices.Contains(variants, v.Name) {
			ms.Variants = append(ms.Variants, v)
		}
	}
	ms.Targets = []plan.TargetSpec{target}
	return ms, nil
}

// parseKinds reads "KIND=LABEL" pairs. A bare KIND is its own label.
func parseKinds(s string) ([]benchmark.Kind, error) {
	var kinds []benchmark.Kind
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		name, label, found := strings.Cut(field, "=")
		if !found {
			label = name
		}
		name, label = strings.TrimSpace(name), strings.TrimSpace(label)
		if name == "" || label == "" {
			return nil, &benchmark.ConfigurationError{Reason: fmt.Sprintf("invalid dataset kind %q", field)}
		}
		kinds = append(kinds, benchmark.Kind{Name: name, Label: label})
	}
	if len(kinds) == 0 {
		return nil, &benchmark.ConfigurationError{Reason: "at least one dataset kind is required"}
	}
	return kinds, nil
}

func parseSizes(s string) ([]int, error) {
	var sizes []int
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		n, err := cast.ToIntE(field)
		if err != nil {
			return nil, &benchmark.ConfigurationError{Reason: fmt.Sprintf("invalid input size %q", field)}
		}
		sizes = append(sizes, n)
	}
	return sizes, nil
}
