package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"benchmatrix/internal/benchmark"
	"benchmatrix/internal/config"
	"benchmatrix/internal/db"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func executeCommand(root *cobra.Command, args ...string) (string, error) {
	resetFlags(root)
	// Mock exit
	oldExit := exit
	exit = func(code int) {
		if code != 0 {
			panic(fmt.Sprintf("exit-%d", code))
		}
	}
	defer func() { exit = oldExit }()
	defer func() {
		if r := recover(); r != nil {
			if s, ok := r.(string); ok && strings.HasPrefix(s, "exit-") {
				return
			}
			panic(r)
		}
	}()
	root.SetArgs(args)
	b := new(bytes.Buffer)
	root.SetOut(b)
	root.SetErr(b)
	root.SetIn(bytes.NewBufferString(""))
	err := root.Execute()
	return b.String(), err
}

// resetFlags resets all flags to their default values.
func resetFlags(cmd *cobra.Command) {
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// stubRunnerFactory replaces the runner factory with one that reports v for
// every run and counts invocations.
func stubRunnerFactory(t *testing.T, v benchmark.Measurement) *int {
	t.Helper()
	calls := 0
	old := newRunnerFunc
	newRunnerFunc = func(context.Context, config.Settings) (benchmark.Runner, func() error, error) {
		r := benchmark.RunnerFunc(func(context.Context, string, []string) (benchmark.Measurement, error) {
			calls++
			return v, nil
		})
		return r, func() error { return nil }, nil
	}
	t.Cleanup(func() { newRunnerFunc = old })
	return &calls
}

// tempArchive points the archive factory at a SQLite file under t.TempDir.
func tempArchive(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.db")
	old := openArchiveFunc
	openArchiveFunc = func(config.Settings) (db.Store, error) {
		return db.NewSQLiteStore(path)
	}
	t.Cleanup(func() { openArchiveFunc = old })
	return path
}

func stubGitCommit(t *testing.T, sha string) {
	t.Helper()
	old := gitCommitFunc
	gitCommitFunc = func() string { return sha }
	t.Cleanup(func() { gitCommitFunc = old })
}

const tinyPlan = `matrices:
  - name: tiny
    sizes: [10, 20]
    trials: 2
    targets:
      - name: t
        command: ./t
        kinds:
          - kind: A
            label: LA
`

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "plan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
