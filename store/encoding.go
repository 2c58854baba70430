package store

import (
	"github.com/octobocto/bip300301-enforcer/types"
	"github.com/octobocto/bip300301-enforcer/wire"
)

// Value codecs for domain structs, in the style of the teacher's
// node/store/utxo_encoding.go and node/store/undo.go: a fixed binary
// layout using CompactSize-prefixed variable fields, encoded/decoded by
// hand rather than a general-purpose serialization library (bbolt's
// values are opaque []byte, and these types are internal to the store so
// a reflection-based codec would be unjustified weight).

func encodeBytes(dst []byte, b []byte) []byte {
	dst = wire.AppendCompactSize(dst, uint64(len(b)))
	return append(dst, b...)
}

func decodeBytes(b []byte, off *int) ([]byte, error) {
	n, err := readCompactSizeAt(b, off)
	if err != nil {
		return nil, err
	}
	if *off+int(n) > len(b) {
		return nil, errCorrupt("truncated byte field")
	}
	v := append([]byte(nil), b[*off:*off+int(n)]...)
	*off += int(n)
	return v, nil
}

func encodeSidechainProposal(p types.SidechainProposal) []byte {
	var buf []byte
	buf = append(buf, byte(p.SidechainNumber))
	buf = encodeBytes(buf, p.Description)
	buf = wire.AppendU16le(buf, p.VoteCount)
	buf = wire.AppendU32le(buf, p.ProposalHeight)
	return buf
}

func decodeSidechainProposal(b []byte) (types.SidechainProposal, error) {
	var p types.SidechainProposal
	if len(b) < 1 {
		return p, errCorrupt("sidechain proposal too short")
	}
	p.SidechainNumber = types.SidechainNumber(b[0])
	off := 1
	desc, err := decodeBytes(b, &off)
	if err != nil {
		return p, err
	}
	p.Description = desc
	voteCount, err := readU16At(b, &off)
	if err != nil {
		return p, err
	}
	p.VoteCount = voteCount
	height, err := readU32At(b, &off)
	if err != nil {
		return p, err
	}
	p.ProposalHeight = height
	return p, nil
}

func encodeSidechain(s types.Sidechain) []byte {
	var buf []byte
	buf = append(buf, byte(s.SidechainNumber))
	buf = encodeBytes(buf, s.Description)
	buf = wire.AppendU16le(buf, s.VoteCount)
	buf = wire.AppendU32le(buf, s.ProposalHeight)
	buf = wire.AppendU32le(buf, s.ActivationHeight)
	return buf
}

func decodeSidechain(b []byte) (types.Sidechain, error) {
	var s types.Sidechain
	if len(b) < 1 {
		return s, errCorrupt("sidechain record too short")
	}
	s.SidechainNumber = types.SidechainNumber(b[0])
	off := 1
	desc, err := decodeBytes(b, &off)
	if err != nil {
		return s, err
	}
	s.Description = desc
	voteCount, err := readU16At(b, &off)
	if err != nil {
		return s, err
	}
	s.VoteCount = voteCount
	proposalHeight, err := readU32At(b, &off)
	if err != nil {
		return s, err
	}
	s.ProposalHeight = proposalHeight
	activationHeight, err := readU32At(b, &off)
	if err != nil {
		return s, err
	}
	s.ActivationHeight = activationHeight
	return s, nil
}

func encodePendingM6ids(list []types.PendingM6id) []byte {
	var buf []byte
	buf = wire.AppendCompactSize(buf, uint64(len(list)))
	for _, p := range list {
		buf = append(buf, p.M6id[:]...)
		buf = wire.AppendU16le(buf, p.VoteCount)
	}
	return buf
}

func decodePendingM6ids(b []byte) ([]types.PendingM6id, error) {
	off := 0
	count, err := readCompactSizeAt(b, &off)
	if err != nil {
		return nil, err
	}
	out := make([]types.PendingM6id, 0, count)
	for i := uint64(0); i < count; i++ {
		if off+32 > len(b) {
			return nil, errCorrupt("truncated pending m6id")
		}
		var m6id types.Hash256
		copy(m6id[:], b[off:off+32])
		off += 32
		voteCount, err := readU16At(b, &off)
		if err != nil {
			return nil, err
		}
		out = append(out, types.PendingM6id{M6id: m6id, VoteCount: voteCount})
	}
	return out, nil
}

func encodeOutpoint(dst []byte, o types.OutPoint) []byte {
	dst = append(dst, o.Txid[:]...)
	return wire.AppendU32le(dst, o.Vout)
}

func decodeOutpoint(b []byte, off *int) (types.OutPoint, error) {
	if *off+36 > len(b) {
		return types.OutPoint{}, errCorrupt("truncated outpoint")
	}
	var o types.OutPoint
	copy(o.Txid[:], b[*off:*off+32])
	*off += 32
	o.Vout = le32(b[*off : *off+4])
	*off += 4
	return o, nil
}

func encodeCtip(c types.Ctip) []byte {
	var buf []byte
	buf = encodeOutpoint(buf, c.Outpoint)
	buf = wire.AppendU64le(buf, uint64(c.Value))
	return buf
}

func decodeCtip(b []byte) (types.Ctip, error) {
	off := 0
	outpoint, err := decodeOutpoint(b, &off)
	if err != nil {
		return types.Ctip{}, err
	}
	value, err := readU64At(b, &off)
	if err != nil {
		return types.Ctip{}, err
	}
	return types.Ctip{Outpoint: outpoint, Value: int64(value)}, nil
}

func encodeTreasuryUtxo(u types.TreasuryUtxo) []byte {
	var buf []byte
	buf = encodeOutpoint(buf, u.Outpoint)
	if u.Address == nil {
		buf = append(buf, 0x00)
	} else {
		buf = append(buf, 0x01)
		buf = encodeBytes(buf, u.Address)
	}
	buf = wire.AppendU64le(buf, uint64(u.TotalValue))
	buf = wire.AppendU64le(buf, uint64(u.PreviousTotalValue))
	return buf
}

func decodeTreasuryUtxo(b []byte) (types.TreasuryUtxo, error) {
	var u types.TreasuryUtxo
	off := 0
	outpoint, err := decodeOutpoint(b, &off)
	if err != nil {
		return u, err
	}
	u.Outpoint = outpoint
	if off >= len(b) {
		return u, errCorrupt("truncated treasury utxo address flag")
	}
	hasAddr := b[off] == 0x01
	off++
	if hasAddr {
		addr, err := decodeBytes(b, &off)
		if err != nil {
			return u, err
		}
		u.Address = addr
	}
	total, err := readU64At(b, &off)
	if err != nil {
		return u, err
	}
	u.TotalValue = int64(total)
	prev, err := readU64At(b, &off)
	if err != nil {
		return u, err
	}
	u.PreviousTotalValue = int64(prev)
	return u, nil
}

func encodeBlockInfo(info types.BlockInfo) []byte {
	var buf []byte
	buf = append(buf, info.CoinbaseTxid[:]...)

	buf = wire.AppendCompactSize(buf, uint64(len(info.Deposits)))
	for _, d := range info.Deposits {
		buf = append(buf, byte(d.SidechainID))
		buf = wire.AppendU64le(buf, d.SequenceNumber)
		buf = encodeOutpoint(buf, d.Outpoint)
		buf = wire.AppendU64le(buf, uint64(d.Output.Value))
		buf = encodeBytes(buf, d.Output.ScriptPubkey)
	}

	buf = wire.AppendCompactSize(buf, uint64(len(info.WithdrawalBundleEvents)))
	for _, e := range info.WithdrawalBundleEvents {
		buf = append(buf, byte(e.SidechainID))
		buf = append(buf, e.M6id[:]...)
		buf = append(buf, byte(e.Kind))
	}

	buf = wire.AppendCompactSize(buf, uint64(len(info.SidechainProposals)))
	for _, p := range info.SidechainProposals {
		buf = append(buf, encodeSidechainProposal(p)...)
	}

	buf = wire.AppendCompactSize(buf, uint64(len(info.BmmCommitments)))
	for _, c := range info.BmmCommitments {
		buf = append(buf, byte(c.SidechainNumber))
		buf = append(buf, c.SidechainBlockHash[:]...)
	}
	return buf
}

func decodeBlockInfo(b []byte) (types.BlockInfo, error) {
	var info types.BlockInfo
	if len(b) < 32 {
		return info, errCorrupt("block info too short")
	}
	copy(info.CoinbaseTxid[:], b[:32])
	off := 32

	depositCount, err := readCompactSizeAt(b, &off)
	if err != nil {
		return info, err
	}
	for i := uint64(0); i < depositCount; i++ {
		if off >= len(b) {
			return info, errCorrupt("truncated deposit")
		}
		var d types.Deposit
		d.SidechainID = types.SidechainNumber(b[off])
		off++
		seq, err := readU64At(b, &off)
		if err != nil {
			return info, err
		}
		d.SequenceNumber = seq
		outpoint, err := decodeOutpoint(b, &off)
		if err != nil {
			return info, err
		}
		d.Outpoint = outpoint
		value, err := readU64At(b, &off)
		if err != nil {
			return info, err
		}
		d.Output.Value = int64(value)
		script, err := decodeBytes(b, &off)
		if err != nil {
			return info, err
		}
		d.Output.ScriptPubkey = script
		info.Deposits = append(info.Deposits, d)
	}

	eventCount, err := readCompactSizeAt(b, &off)
	if err != nil {
		return info, err
	}
	for i := uint64(0); i < eventCount; i++ {
		if off+33 > len(b) {
			return info, errCorrupt("truncated withdrawal bundle event")
		}
		var e types.WithdrawalBundleEvent
		e.SidechainID = types.SidechainNumber(b[off])
		off++
		copy(e.M6id[:], b[off:off+32])
		off += 32
		e.Kind = types.WithdrawalBundleEventKind(b[off])
		off++
		info.WithdrawalBundleEvents = append(info.WithdrawalBundleEvents, e)
	}

	proposalCount, err := readCompactSizeAt(b, &off)
	if err != nil {
		return info, err
	}
	for i := uint64(0); i < proposalCount; i++ {
		if off >= len(b) {
			return info, errCorrupt("truncated sidechain proposal in block info")
		}
		p, n, err := decodeSidechainProposalAt(b, off)
		if err != nil {
			return info, err
		}
		info.SidechainProposals = append(info.SidechainProposals, p)
		off = n
	}

	commitCount, err := readCompactSizeAt(b, &off)
	if err != nil {
		return info, err
	}
	for i := uint64(0); i < commitCount; i++ {
		if off+33 > len(b) {
			return info, errCorrupt("truncated bmm commitment")
		}
		var c types.BmmCommitment
		c.SidechainNumber = types.SidechainNumber(b[off])
		off++
		copy(c.SidechainBlockHash[:], b[off:off+32])
		off += 32
		info.BmmCommitments = append(info.BmmCommitments, c)
	}

	return info, nil
}

// decodeSidechainProposalAt decodes one proposal starting at off and
// returns the new offset, mirroring decodeSidechainProposal but without
// requiring the whole remaining buffer to belong to a single proposal
// (needed when several proposals are packed into one BlockInfo value).
func decodeSidechainProposalAt(b []byte, start int) (types.SidechainProposal, int, error) {
	var p types.SidechainProposal
	if start >= len(b) {
		return p, start, errCorrupt("sidechain proposal too short")
	}
	p.SidechainNumber = types.SidechainNumber(b[start])
	off := start + 1
	desc, err := decodeBytes(b, &off)
	if err != nil {
		return p, off, err
	}
	p.Description = desc
	voteCount, err := readU16At(b, &off)
	if err != nil {
		return p, off, err
	}
	p.VoteCount = voteCount
	height, err := readU32At(b, &off)
	if err != nil {
		return p, off, err
	}
	p.ProposalHeight = height
	return p, off, nil
}

func encodeHeaderInfo(h types.HeaderInfo) []byte {
	var buf []byte
	buf = append(buf, h.BlockHash[:]...)
	buf = append(buf, h.PrevBlockHash[:]...)
	buf = wire.AppendU32le(buf, h.Height)
	buf = append(buf, h.Work[:]...)
	return buf
}

func decodeHeaderInfo(b []byte) (types.HeaderInfo, error) {
	var h types.HeaderInfo
	if len(b) != 32+32+4+32 {
		return h, errCorrupt("header info wrong length")
	}
	copy(h.BlockHash[:], b[0:32])
	copy(h.PrevBlockHash[:], b[32:64])
	h.Height = le32(b[64:68])
	copy(h.Work[:], b[68:100])
	return h, nil
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func readCompactSizeAt(b []byte, off *int) (uint64, error) {
	n, consumed, err := peekCompactSize(b[*off:])
	if err != nil {
		return 0, err
	}
	*off += consumed
	return n, nil
}

func readU16At(b []byte, off *int) (uint16, error) {
	if *off+2 > len(b) {
		return 0, errCorrupt("truncated u16")
	}
	v := uint16(b[*off]) | uint16(b[*off+1])<<8
	*off += 2
	return v, nil
}

func readU32At(b []byte, off *int) (uint32, error) {
	if *off+4 > len(b) {
		return 0, errCorrupt("truncated u32")
	}
	v := le32(b[*off : *off+4])
	*off += 4
	return v, nil
}

func readU64At(b []byte, off *int) (uint64, error) {
	if *off+8 > len(b) {
		return 0, errCorrupt("truncated u64")
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[*off+i]) << (8 * i)
	}
	*off += 8
	return v, nil
}

// peekCompactSize decodes a Bitcoin-style CompactSize without importing
// wire's offset-pointer reader, since store's codec operates on absolute
// offsets rather than wire's shared-cursor style; delegates to wire's
// decoder for the actual varint rules to avoid a second implementation of
// the non-minimal-encoding check.
func peekCompactSize(b []byte) (uint64, int, error) {
	v, n, err := wire.DecodeCompactSize(b)
	if err != nil {
		return 0, 0, errCorrupt("invalid compactsize")
	}
	return v, n, nil
}
