// Package commands implements the federationd CLI, grounded on the
// teacher's cmd/vapord/commands root/init/run split (cobra command tree,
// viper-unmarshaled config, PersistentPreRunE home-resolution step).
package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/bytom/federation/config"
)

const logModule = "cmd"

var config = cfg.DefaultConfig()

// RootCmd is the federationd command tree's entry point.
var RootCmd = &cobra.Command{
	Use:   "federationd",
	Short: "Proof-of-authority federation governance node",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		home, _ := cmd.Flags().GetString("home")
		viper.SetConfigFile(filepath.Join(home, "config.toml"))
		if err := viper.ReadInConfig(); err != nil && !os.IsNotExist(err) {
			return err
		}
		if err := viper.Unmarshal(config); err != nil {
			return err
		}
		return config.ResolveHome()
	},
}

func init() {
	RootCmd.PersistentFlags().String("home", cfg.DefaultDataDir(), "root directory for config and data")
	viper.BindPFlag("home", RootCmd.PersistentFlags().Lookup("home"))
}
