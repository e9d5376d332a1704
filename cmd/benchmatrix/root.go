package main

import (
	"fmt"
	"io"
	"os"

	"benchmatrix/internal/config"
	"benchmatrix/internal/telemetry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var exit = os.Exit
var cfgFile string
var logCloser io.Closer

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "benchmatrix",
	Short: "Run benchmark executables across a matrix of sizes and kinds",
	Long: `benchmatrix runs external benchmark programs over every combination of
target, dataset kind, input size, variant and trial, then prints the raw
series for plotting (GRAPH DATA) and per-size averages (AVERAGES).

Per-run failures become gaps in the output; only an invalid configuration
stops a sweep before it starts.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if logCloser != nil {
		logCloser.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose/debug logging")
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if err := config.Load(cfgFile); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
		return
	}

	if err := config.ValidateConfig(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		exit(1)
		return
	}

	if logCloser != nil {
		logCloser.Close()
	}
	logCloser = telemetry.InitLogger(viper.GetBool("verbose"), viper.GetString("log_file"))
}
