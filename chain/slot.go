package chain

// SlotOracle resolves which federation member's round-robin PoA slot a
// given block time falls into. The actual round-robin/slot-timing logic
// is owned by the block producer (out of scope, §1); the governance core
// only consumes its verdict, via this narrow interface, to credit the
// correct member's last-active timestamp in the Idle-Members Kicker.
type SlotOracle interface {
	// SlotAssignment returns the pubkey assigned to produce a block at
	// unix time t.
	SlotAssignment(t uint64) (PubKey, error)
}

// SlotOracleFunc adapts a plain function to SlotOracle.
type SlotOracleFunc func(t uint64) (PubKey, error)

func (f SlotOracleFunc) SlotAssignment(t uint64) (PubKey, error) { return f(t) }
