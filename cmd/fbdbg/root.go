package main

import (
	"errors"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/JoshLWScott/fbdbg/internal/session"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "fbdbg",
	Short: "A command-line front-end for Debug Adapter Protocol adapters",
	Long: `fbdbg drives an external debug adapter over the Debug Adapter
Protocol: it launches or attaches to a debuggee, tracks its threads and
stack frames, keeps user-declared breakpoints synchronized with the
adapter, and exposes console commands (break, continue, next, print, ...)
for controlling it.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "adapter descriptor config file (default: $HOME/.fbdbg.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	_ = viper.BindPFlag("logLevel", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(launchCmd)
	rootCmd.AddCommand(attachCmd)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".fbdbg")
		viper.AddConfigPath("$HOME")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("FBDBG")
	viper.AutomaticEnv()
	// A missing config file is not fatal: loadAdapterConfigs then falls
	// back to the built-in "dlv" adapter description.
	_ = viper.ReadInConfig()
}

// Execute runs the root command; cmd/fbdbg/main.go is the only caller.
func Execute() error {
	return rootCmd.Execute()
}

func viperLogLevel() string {
	if lvl := viper.GetString("logLevel"); lvl != "" {
		return lvl
	}
	return "info"
}

// exitCodeFor resolves spec.md §9's open question: the source process
// exits 0 on several failure paths, which the rewrite treats as a bug.
// A session.FatalSessionError (failed adapter spawn, failed initialize,
// relaunch exhausted its retries) now exits non-zero; a clean attach-mode
// termination (session.ExpectedExit) still exits 0.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	var expected *session.ExpectedExit
	if errors.As(err, &expected) {
		return 0
	}
	var fatal *session.FatalSessionError
	if errors.As(err, &fatal) {
		return 1
	}
	return 1
}
