package drivechain

import "github.com/octobocto/bip300301-enforcer/types"

// CoinbaseMessageKind tags a decoded coinbase scriptPubkey message.
type CoinbaseMessageKind uint8

const (
	M1ProposeSidechain CoinbaseMessageKind = iota
	M2AckSidechain
	M3ProposeBundle
	M4AckBundlesMsg
	M7BmmAccept
)

// M4AckBundles is the decoded vote body of an M4 coinbase message. Per
// spec.md §9, OneByte upvotes are widened to the same uint16
// representation as TwoBytes so a single vote-tally implementation
// (handleM4Votes) serves both wire forms.
type M4AckBundles struct {
	LeadingBy50   bool
	RepeatPrev    bool
	Upvotes       []uint16 // valid when !LeadingBy50 && !RepeatPrev
}

// CoinbaseMessage is a decoded M1/M2/M3/M4/M7 coinbase message.
type CoinbaseMessage struct {
	Kind CoinbaseMessageKind

	SidechainNumber types.SidechainNumber

	// M1
	Description []byte
	// M2
	DescriptionHash types.Hash256
	// M3
	BundleTxid types.Hash256
	// M4
	AckBundles M4AckBundles
	// M7
	SidechainBlockHash types.Hash256
}

// ParseCoinbaseScript decodes one coinbase scriptPubkey into a
// CoinbaseMessage. Scripts that don't match a known tag are not drivechain
// messages and are reported via ok=false so the caller can skip them
// silently (spec.md §4.5 step 1).
func ParseCoinbaseScript(script []byte) (CoinbaseMessage, bool) {
	if len(script) < 1 {
		return CoinbaseMessage{}, false
	}
	tag, body := script[0], script[1:]
	switch tag {
	case tagM1ProposeSidechain:
		if len(body) < 1 {
			return CoinbaseMessage{}, false
		}
		return CoinbaseMessage{
			Kind:            M1ProposeSidechain,
			SidechainNumber: types.SidechainNumber(body[0]),
			Description:     append([]byte(nil), body[1:]...),
		}, true
	case tagM2AckSidechain:
		if len(body) != 33 {
			return CoinbaseMessage{}, false
		}
		var hash types.Hash256
		copy(hash[:], body[1:])
		return CoinbaseMessage{
			Kind:            M2AckSidechain,
			SidechainNumber: types.SidechainNumber(body[0]),
			DescriptionHash: hash,
		}, true
	case tagM3ProposeBundle:
		if len(body) != 33 {
			return CoinbaseMessage{}, false
		}
		var txid types.Hash256
		copy(txid[:], body[1:])
		return CoinbaseMessage{
			Kind:            M3ProposeBundle,
			SidechainNumber: types.SidechainNumber(body[0]),
			BundleTxid:      txid,
		}, true
	case tagM4AckBundles:
		ack, ok := parseM4AckBundles(body)
		if !ok {
			return CoinbaseMessage{}, false
		}
		return CoinbaseMessage{Kind: M4AckBundlesMsg, AckBundles: ack}, true
	case tagM7BmmAccept:
		if len(body) != 33 {
			return CoinbaseMessage{}, false
		}
		var hash types.Hash256
		copy(hash[:], body[1:])
		return CoinbaseMessage{
			Kind:               M7BmmAccept,
			SidechainNumber:    types.SidechainNumber(body[0]),
			SidechainBlockHash: hash,
		}, true
	default:
		return CoinbaseMessage{}, false
	}
}

func parseM4AckBundles(body []byte) (M4AckBundles, bool) {
	if len(body) < 1 {
		return M4AckBundles{}, false
	}
	variant, rest := body[0], body[1:]
	switch variant {
	case m4VariantLeadingBy50:
		return M4AckBundles{LeadingBy50: true}, true
	case m4VariantRepeatPrev:
		return M4AckBundles{RepeatPrev: true}, true
	case m4VariantOneByte:
		upvotes := make([]uint16, len(rest))
		for i, v := range rest {
			upvotes[i] = uint16(v)
		}
		return M4AckBundles{Upvotes: upvotes}, true
	case m4VariantTwoBytes:
		if len(rest)%2 != 0 {
			return M4AckBundles{}, false
		}
		upvotes := make([]uint16, len(rest)/2)
		for i := range upvotes {
			upvotes[i] = uint16(rest[2*i]) | uint16(rest[2*i+1])<<8
		}
		return M4AckBundles{Upvotes: upvotes}, true
	default:
		return M4AckBundles{}, false
	}
}

// ParseOpDrivechain parses a treasury output's scriptPubkey
// (spec.md §6 "OP_DRIVECHAIN output"): a marker opcode, a sidechain
// number, and a truthy terminator byte. Scripts that don't end with a
// truthy terminator are ignored (not a peg transaction).
func ParseOpDrivechain(script []byte) (types.SidechainNumber, bool) {
	if len(script) < 3 || script[0] != opDrivechain {
		return 0, false
	}
	if script[len(script)-1] == 0x00 {
		return 0, false
	}
	return types.SidechainNumber(script[1]), true
}

// BmmRequest is the decoded body of an M8 BMM request transaction's
// output[0] scriptPubkey.
type BmmRequest struct {
	SidechainNumber        types.SidechainNumber
	SidechainBlockHash     types.Hash256
	PrevMainchainBlockHash types.Hash256
}

// ParseM8BmmRequest decodes an M8 request script. Non-BMM scripts return
// ok=false so callers can treat output[0] as an ordinary payment
// (spec.md §4.4 "Non-BMM transactions at output[0] pass through
// silently").
func ParseM8BmmRequest(script []byte) (BmmRequest, bool) {
	const bodyLen = 1 + 32 + 32
	if len(script) != 1+bodyLen || script[0] != tagM8BmmRequest {
		return BmmRequest{}, false
	}
	body := script[1:]
	var req BmmRequest
	req.SidechainNumber = types.SidechainNumber(body[0])
	copy(req.SidechainBlockHash[:], body[1:33])
	copy(req.PrevMainchainBlockHash[:], body[33:65])
	return req, true
}
