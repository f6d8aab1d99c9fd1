package config

import (
	"path"

	cmn "github.com/tendermint/tmlibs/common"
)

// EnsureRoot creates the root data directory tree and writes a default
// config.toml if one isn't already present, matching the teacher's
// production-settings bootstrap in config/toml.go.
func EnsureRoot(rootDir string) {
	cmn.EnsureDir(rootDir, 0700)
	cmn.EnsureDir(rootDir+"/data", 0700)
	cmn.EnsureDir(rootDir+"/log", 0700)

	configFilePath := path.Join(rootDir, "config.toml")
	if !cmn.FileExists(configFilePath) {
		cmn.MustWriteFile(configFilePath, []byte(defaultConfigTmpl), 0644)
	}
}

var defaultConfigTmpl = `# This is a TOML config file.
# For more information, see https://github.com/toml-lang/toml
log_level = "info"
db_backend = "leveldb"

[api]
listen_address = "127.0.0.1:8080"
release_mode = false

[federation]
max_reorg_length = 4
max_idle_seconds = 21600
# node_pubkey = "<this node's own hex-encoded federation pubkey>"

# Genesis federation roster, seeded by "federationd init".
# [[federation.members]]
# pubkey = "<hex-encoded pubkey>"
# is_multisig = false
`
