// Package types holds the domain entities shared by the drivechain engine,
// the store, and the event bus: sidechain slots, treasury (Ctip) lineage,
// withdrawal bundle votes, BMM commitments, and the header/block metadata
// derived from each connected block.
package types

// Hash256 is a 32-byte opaque identifier: a block hash, a sidechain
// description hash, or an m6id.
type Hash256 [32]byte

// SidechainNumber identifies one of 256 sidechain slots.
type SidechainNumber uint8

// OutPoint references a single transaction output.
type OutPoint struct {
	Txid Hash256
	Vout uint32
}

// TxOut is a transaction output: a value in satoshis and a raw script.
type TxOut struct {
	Value        int64
	ScriptPubkey []byte
}

// SidechainProposal is an unconfirmed M1 proposal awaiting M2 acks.
type SidechainProposal struct {
	SidechainNumber SidechainNumber
	Description     []byte
	VoteCount       uint16
	ProposalHeight  uint32
}

// DescriptionHash is the double-SHA256 of a SidechainProposal's Description;
// it is the proposal's identity and its key in the proposals table.
func (p *SidechainProposal) DescriptionHash(sha256d func([]byte) Hash256) Hash256 {
	return sha256d(p.Description)
}

// Sidechain is an activated slot occupant.
type Sidechain struct {
	SidechainNumber  SidechainNumber
	Description      []byte
	VoteCount        uint16
	ProposalHeight   uint32
	ActivationHeight uint32
}

// PendingM6id is a withdrawal bundle awaiting enough M4 acks for inclusion.
type PendingM6id struct {
	M6id      Hash256
	VoteCount uint16
}

// Ctip is the sole "current treasury tip" UTXO for an active slot.
type Ctip struct {
	Outpoint OutPoint
	Value    int64
}

// TreasuryUtxo is an immutable historical record of one treasury
// transition for a slot, indexed by (slot, sequence number).
type TreasuryUtxo struct {
	Outpoint            OutPoint
	Address             []byte // nil if absent
	TotalValue          int64
	PreviousTotalValue  int64
}

// Deposit is emitted when a treasury transaction does not decrease total
// value and carries a recipient script; equal totals yield a zero-value
// deposit.
type Deposit struct {
	SidechainID    SidechainNumber
	SequenceNumber uint64
	Outpoint       OutPoint
	Output         TxOut
}

// WithdrawalBundleEventKind tags a WithdrawalBundleEvent.
type WithdrawalBundleEventKind uint8

const (
	WithdrawalBundleSubmitted WithdrawalBundleEventKind = iota
	WithdrawalBundleFailed
	WithdrawalBundleSucceeded
)

func (k WithdrawalBundleEventKind) String() string {
	switch k {
	case WithdrawalBundleSubmitted:
		return "Submitted"
	case WithdrawalBundleFailed:
		return "Failed"
	case WithdrawalBundleSucceeded:
		return "Succeeded"
	default:
		return "Unknown"
	}
}

// WithdrawalBundleEvent reports a state transition of a withdrawal bundle.
type WithdrawalBundleEvent struct {
	SidechainID SidechainNumber
	M6id        Hash256
	Kind        WithdrawalBundleEventKind
}

// BmmCommitment is one (slot, sidechain block hash) pair accepted via M7
// within a single mainchain block. BmmCommitments preserves insertion
// order as a slice rather than a map, matching the original's
// insertion-ordered LinkedHashMap without pulling in an ordered-map
// dependency.
type BmmCommitment struct {
	SidechainNumber     SidechainNumber
	SidechainBlockHash  Hash256
}

type BmmCommitments []BmmCommitment

// Get returns the committed hash for a slot and whether it was present.
func (c BmmCommitments) Get(slot SidechainNumber) (Hash256, bool) {
	for _, e := range c {
		if e.SidechainNumber == slot {
			return e.SidechainBlockHash, true
		}
	}
	return Hash256{}, false
}

// BlockInfo is the derived per-block summary written alongside each
// connected block.
type BlockInfo struct {
	CoinbaseTxid          Hash256
	Deposits               []Deposit
	WithdrawalBundleEvents []WithdrawalBundleEvent
	SidechainProposals     []SidechainProposal
	BmmCommitments         BmmCommitments
}

// HeaderInfo maps a block hash to its height, parent, and cumulative work.
type HeaderInfo struct {
	BlockHash     Hash256
	PrevBlockHash Hash256
	Height        uint32
	// Work is a 256-bit cumulative-work accumulator, little-endian.
	Work [32]byte
}

// EventKind tags an Event.
type EventKind uint8

const (
	EventConnectBlock EventKind = iota
	EventDisconnectBlock
)

// Event is the tagged union broadcast on the event bus: ConnectBlock
// carries the newly derived header/block info, DisconnectBlock carries
// only the hash being rolled back.
type Event struct {
	Kind       EventKind
	HeaderInfo HeaderInfo
	BlockInfo  BlockInfo
	BlockHash  Hash256
}

func ConnectBlockEvent(h HeaderInfo, b BlockInfo) Event {
	return Event{Kind: EventConnectBlock, HeaderInfo: h, BlockInfo: b}
}

func DisconnectBlockEvent(hash Hash256) Event {
	return Event{Kind: EventDisconnectBlock, BlockHash: hash}
}
