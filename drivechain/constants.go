package drivechain

// Tunable vote-tallying parameters, carried over verbatim from the
// original implementation's bip300/task.rs (values there derive
// WITHDRAWAL_BUNDLE_INCLUSION_THRESHOLD and the two activation thresholds
// from WITHDRAWAL_BUNDLE_MAX_AGE rather than stating them independently;
// spec.md documents these as opaque tunables so they are exposed here as
// ordinary package vars rather than hardcoded, so a caller embedding this
// engine with mainnet's larger windows can override them before first use).
var (
	WithdrawalBundleMaxAge              uint16 = 10
	WithdrawalBundleInclusionThreshold  uint16 = WithdrawalBundleMaxAge / 2 // 5

	UsedSidechainSlotProposalMaxAge        uint32 = uint32(WithdrawalBundleMaxAge)
	UsedSidechainSlotActivationThreshold   uint16 = WithdrawalBundleMaxAge / 2

	UnusedSidechainSlotProposalMaxAge      uint32 = 10
	unusedSidechainSlotActivationMaxFails  uint16 = 5
	UnusedSidechainSlotActivationThreshold uint16 = uint16(UnusedSidechainSlotProposalMaxAge) - unusedSidechainSlotActivationMaxFails

	// MaxBmmBlockDepth bounds the accepted-BMM-hash history retained per
	// height, ~1 week of mainchain blocks.
	MaxBmmBlockDepth uint64 = 6 * 24 * 7
)

// M4 vote sentinels (spec.md §4.2.2, §6).
const (
	AbstainTwoBytes uint16 = 0xFFFF
	AlarmTwoBytes   uint16 = 0xFFFE
)

// Coinbase / M8 message tags (spec.md §6). These prefix each coinbase
// scriptPubkey message and the M8 request script.
const (
	tagM1ProposeSidechain byte = 0xd5
	tagM2AckSidechain     byte = 0xd6
	tagM3ProposeBundle    byte = 0xd7
	tagM4AckBundles       byte = 0xd8
	tagM7BmmAccept        byte = 0xd2
	tagM8BmmRequest       byte = 0xd3
)

// M4AckBundles variant tags, following the coinbase message header byte.
const (
	m4VariantLeadingBy50   byte = 0x00
	m4VariantRepeatPrev    byte = 0x01
	m4VariantOneByte       byte = 0x02
	m4VariantTwoBytes      byte = 0x03
)

// opDrivechain is the script opcode marking a treasury output's
// scriptPubkey (spec.md §6, "OP_DRIVECHAIN output").
const opDrivechain byte = 0xd4

// opReturn is the standard Bitcoin OP_RETURN opcode, used here only to
// recognize a sidechain-address marker at output[1] (spec.md §4.3 step 3).
const opReturn byte = 0x6a
