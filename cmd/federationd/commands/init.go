package commands

import (
	"os"
	"path"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/bytom/federation/chain"
	cfg "github.com/bytom/federation/config"
	"github.com/bytom/federation/federation"
)

var initFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize config and genesis federation roster",
	Run:   initFiles,
}

func init() {
	RootCmd.AddCommand(initFilesCmd)
}

func initFiles(cmd *cobra.Command, args []string) {
	configFilePath := path.Join(config.RootDir, "config.toml")
	if _, err := os.Stat(configFilePath); !os.IsNotExist(err) {
		log.WithFields(log.Fields{"module": logModule, "config": configFilePath}).Fatal("already exists config file")
	}

	cfg.EnsureRoot(config.RootDir)

	fedManager, err := federation.NewManager(config.FederationFile(), nil)
	if err != nil {
		log.WithFields(log.Fields{"module": logModule, "err": err}).Fatal("fail to open federation store")
	}
	for _, m := range config.Federation.Members {
		pk, err := chain.ParsePubKey(m.PubKeyHex)
		if err != nil {
			log.WithFields(log.Fields{"module": logModule, "pubkey": m.PubKeyHex, "err": err}).Fatal("malformed genesis member pubkey")
		}
		member := chain.FederationMember{PubKey: pk, IsMultisig: m.IsMultisig}
		if err := fedManager.AddMember(member, 0); err != nil {
			log.WithFields(log.Fields{"module": logModule, "err": err}).Fatal("fail to seed genesis federation member")
		}
	}

	log.WithFields(log.Fields{"module": logModule, "config": configFilePath, "members": len(config.Federation.Members)}).Info("initialized federation node")
}
