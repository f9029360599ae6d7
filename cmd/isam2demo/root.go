package main

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// newRootCommand lets every child command read flags from CLI flags,
// environment variables prefixed with ISAM2, or config.yaml (in that
// order), mirroring the teacher's NewRootCommand.
func newRootCommand() *cobra.Command {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("ISAM2")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	for _, path := range []string{"/etc/isam2", "$HOME/.isam2", "."} {
		viper.AddConfigPath(path)
	}
	_ = viper.ReadInConfig()

	return &cobra.Command{
		Use:   "isam2demo",
		Short: "Drive the incremental Bayes-tree SLAM solver through its scenario graphs",
		Long: `isam2demo builds small pose-chain factor graphs and feeds them through
the incremental ISAM2 solver one update at a time, printing the estimate and
update statistics after each call.`,
	}
}
