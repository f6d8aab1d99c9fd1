package commands

import (
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/bytom/federation/admin/api"
	"github.com/bytom/federation/chain"
	"github.com/bytom/federation/errors"
	federationlog "github.com/bytom/federation/log"

	"github.com/bytom/federation/event"
	"github.com/bytom/federation/federation"
	"github.com/bytom/federation/idlekicker"
	"github.com/bytom/federation/voting"
	"github.com/bytom/federation/whitelist"
)

var errNoFederationMembers = errors.New("cmd: federation roster is empty")

var runNodeCmd = &cobra.Command{
	Use:   "node",
	Short: "Run the federation governance node",
	RunE:  runNode,
}

func init() {
	runNodeCmd.Flags().String("log_level", config.LogLevel, "Select log level (debug, info, warn, error)")
	runNodeCmd.Flags().String("api.listen_address", config.API.ListenAddress, "Admin HTTP API listen address")
	runNodeCmd.Flags().Bool("api.release_mode", config.API.ReleaseMode, "Run the admin API in gin release mode")
	runNodeCmd.Flags().Uint64("federation.max_reorg_length", config.Federation.MaxReorgLength, "Blocks between a poll reaching majority and its execution")
	runNodeCmd.Flags().Uint64("federation.max_idle_seconds", config.Federation.MaxIdleSeconds, "Idle threshold before the kicker schedules a kick vote")
	runNodeCmd.Flags().String("federation.node_pubkey", config.Federation.NodePubKeyHex, "This node's own federation pubkey, hex-encoded")
	viper.BindPFlags(runNodeCmd.Flags())

	RootCmd.AddCommand(runNodeCmd)
}

// collaborators bundles the governance core's wired components, exposed so
// the out-of-scope block-processing collaborator can drive OnBlockConnected
// / OnBlockDisconnected on every component in the right order.
type collaborators struct {
	federation *federation.Manager
	whitelist  *whitelist.Manager
	voting     *voting.Manager
	kicker     *idlekicker.Kicker
	api        *api.Server
	dispatcher *event.Dispatcher
}

// OnBlockConnected fans a connected block out to every component that
// tracks chain position, in the order the Voting Manager's own execution
// depends on the roster being current first, then publishes
// BlockConnectedEvent for any ambient subscriber (admin notifications,
// metrics) that only cares block processing happened, not its governance
// side effects.
func (c *collaborators) OnBlockConnected(block *chain.Block, header *chain.ChainedHeader) error {
	if err := c.voting.OnBlockConnected(block, header); err != nil {
		return err
	}
	if err := c.kicker.OnBlockConnected(block, header); err != nil {
		return err
	}
	return c.dispatcher.Post(event.BlockConnectedEvent{Block: block, ChainedHeader: header})
}

// OnBlockDisconnected reverses OnBlockConnected in the opposite order.
func (c *collaborators) OnBlockDisconnected(block *chain.Block, header *chain.ChainedHeader) error {
	if err := c.kicker.OnBlockDisconnected(block, header); err != nil {
		return err
	}
	if err := c.voting.OnBlockDisconnected(block, header); err != nil {
		return err
	}
	return c.dispatcher.Post(event.BlockDisconnectedEvent{Block: block, ChainedHeader: header})
}

func runNode(cmd *cobra.Command, args []string) error {
	federationlog.Init(config.AbsLogDir(), config.LogLevel)
	logger := log.WithField("module", logModule)

	// A node with no node_pubkey configured is an observer: it tracks the
	// roster and polls, and its Idle Kicker never schedules kick votes.
	var selfKey *chain.PubKey
	if config.Federation.NodePubKeyHex != "" {
		pk, err := chain.ParsePubKey(config.Federation.NodePubKeyHex)
		if err != nil {
			logger.WithField("err", err).Fatal("malformed node pubkey")
		}
		selfKey = &pk
	}

	fedManager, err := federation.NewManager(config.FederationFile(), selfKey)
	if err != nil {
		logger.WithField("err", err).Fatal("fail to open federation store")
	}
	selfPubKey, _ := fedManager.CurrentKey()

	whitelistManager, err := whitelist.NewManager(config.WhitelistFile())
	if err != nil {
		logger.WithField("err", err).Fatal("fail to open whitelist store")
	}

	dispatcher := event.NewDispatcher()

	votingManager, err := voting.NewManager(config.PollLogFile(), voting.Config{
		Federation:     fedManager,
		FedMutator:     fedManager,
		Whitelist:      whitelistManager,
		Dispatcher:     dispatcher,
		MaxReorgLength: config.Federation.MaxReorgLength,
		SelfPubKey:     selfPubKey,
		Logger:         log.WithField("module", "voting"),
	})
	if err != nil {
		logger.WithField("err", err).Fatal("fail to open poll log")
	}

	kicker, err := idlekicker.New(idlekicker.Config{
		Path:           config.LastActiveFile(),
		MaxIdleSeconds: config.Federation.MaxIdleSeconds,
		SlotOracle:     chain.SlotOracleFunc(roundRobinSlot(fedManager)),
		SelfPubKey:     selfPubKey,
		Federation:     fedManager,
		Voting:         votingManager,
		Dispatcher:     dispatcher,
	})
	if err != nil {
		logger.WithField("err", err).Fatal("fail to open idle-kicker store")
	}

	// Cold start: seed every current member's idle clock with this
	// moment so a freshly started node never sees the genesis roster as
	// instantly idle (§4.3).
	now := uint64(time.Now().Unix())
	for _, member := range fedManager.Members() {
		if err := kicker.SeedMember(member.PubKey, now); err != nil {
			logger.WithField("err", err).Fatal("fail to seed idle-kicker state")
		}
	}

	handler := api.NewHandler(votingManager, fedManager)
	server := api.NewServer(config.API.ListenAddress, config.API.ReleaseMode, handler)

	collab := &collaborators{federation: fedManager, whitelist: whitelistManager, voting: votingManager, kicker: kicker, api: server, dispatcher: dispatcher}

	go func() {
		if err := server.Run(); err != nil {
			logger.WithField("err", err).Fatal("admin api server stopped")
		}
	}()

	logger.WithField("members", len(collab.federation.Members())).Info("federation governance node started")

	// The block producer, p2p sync layer, and consensus header-validation
	// engine that drive collaborators.OnBlockConnected/OnBlockDisconnected
	// are black-box collaborators out of scope for this repository (§1);
	// this process only owns the governance core and its admin surface.
	var wg sync.WaitGroup
	wg.Add(1)
	wg.Wait()
	return nil
}

// roundRobinSlot is a placeholder SlotOracle grounded on a simple
// round-robin assumption over the live federation roster; the real PoA
// slot-timing algorithm belongs to the out-of-scope block producer.
func roundRobinSlot(fed *federation.Manager) func(t uint64) (chain.PubKey, error) {
	return func(t uint64) (chain.PubKey, error) {
		members := fed.Members()
		if len(members) == 0 {
			return chain.PubKey{}, errNoFederationMembers
		}
		return members[t%uint64(len(members))].PubKey, nil
	}
}
