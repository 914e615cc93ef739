// Command civic is the citizen and admin client for a civicconnect API.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	v := viper.New()
	root := &cobra.Command{
		Use:           "civic",
		Short:         "Report municipal problems and follow their resolution",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadSettings(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd, v)
			if err != nil {
				return err
			}
			return a.home()
		},
	}

	flags := root.PersistentFlags()
	flags.String("server", "http://localhost:8080", "API base URL")
	flags.String("config", "", "settings file (default $HOME/.config/civic/config.yaml)")
	flags.Duration("timeout", 15*time.Second, "per-request timeout")
	flags.String("sync", "merge_deltas", "realtime sync policy: merge_deltas or full_refetch")
	flags.Bool("role-fail-closed", false, "treat role lookup failures as no access")
	flags.Bool("debug", false, "verbose logging")
	for _, name := range []string{"server", "config", "timeout", "sync", "role-fail-closed", "debug"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	root.AddCommand(
		newAuthCmd(v),
		newFeedCmd(v),
		newReportCmd(v),
		newProfileCmd(v),
		newAdminCmd(v),
		newHealthCmd(v),
	)
	return root
}

// loadSettings layers flags over CIVIC_* environment variables over the settings file.
func loadSettings(v *viper.Viper) error {
	v.SetEnvPrefix("CIVIC")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	path := v.GetString("config")
	if path == "" {
		path = ".civic.yaml"
		if dir, err := os.UserConfigDir(); err == nil {
			path = filepath.Join(dir, "civic", "config.yaml")
		}
	}
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil && fileExists(path) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	v.Set("config", path)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
