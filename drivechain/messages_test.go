package drivechain

import (
	"testing"

	"github.com/octobocto/bip300301-enforcer/types"
)

func TestParseCoinbaseScript_M1ProposeSidechain(t *testing.T) {
	script := append([]byte{tagM1ProposeSidechain, 5}, []byte("description bytes")...)
	msg, ok := ParseCoinbaseScript(script)
	if !ok {
		t.Fatalf("expected script to parse")
	}
	if msg.Kind != M1ProposeSidechain || msg.SidechainNumber != 5 {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if string(msg.Description) != "description bytes" {
		t.Fatalf("unexpected description: %q", msg.Description)
	}
}

func TestParseCoinbaseScript_M2AckSidechainRequiresExactLength(t *testing.T) {
	body := append([]byte{7}, make([]byte, 32)...)
	script := append([]byte{tagM2AckSidechain}, body...)
	msg, ok := ParseCoinbaseScript(script)
	if !ok || msg.Kind != M2AckSidechain || msg.SidechainNumber != 7 {
		t.Fatalf("unexpected parse result: msg=%+v ok=%v", msg, ok)
	}

	short := append([]byte{tagM2AckSidechain}, make([]byte, 10)...)
	if _, ok := ParseCoinbaseScript(short); ok {
		t.Fatalf("expected short M2 script to be rejected")
	}
}

func TestParseM4AckBundles_OneByteAndTwoBytes(t *testing.T) {
	oneByte := append([]byte{tagM4AckBundles, m4VariantOneByte}, []byte{0x01, 0xFF, 0xFE}...)
	msg, ok := ParseCoinbaseScript(oneByte)
	if !ok || msg.Kind != M4AckBundlesMsg {
		t.Fatalf("expected one-byte M4 to parse")
	}
	if len(msg.AckBundles.Upvotes) != 3 || msg.AckBundles.Upvotes[1] != 0xFF {
		t.Fatalf("unexpected upvotes: %+v", msg.AckBundles.Upvotes)
	}

	twoBytes := append([]byte{tagM4AckBundles, m4VariantTwoBytes}, []byte{0xFF, 0xFF, 0x02, 0x00}...)
	msg2, ok := ParseCoinbaseScript(twoBytes)
	if !ok || msg2.Kind != M4AckBundlesMsg {
		t.Fatalf("expected two-byte M4 to parse")
	}
	if len(msg2.AckBundles.Upvotes) != 2 || msg2.AckBundles.Upvotes[0] != AbstainTwoBytes || msg2.AckBundles.Upvotes[1] != 2 {
		t.Fatalf("unexpected upvotes: %+v", msg2.AckBundles.Upvotes)
	}

	oddLen := append([]byte{tagM4AckBundles, m4VariantTwoBytes}, []byte{0x01}...)
	if _, ok := ParseCoinbaseScript(oddLen); ok {
		t.Fatalf("expected odd-length two-byte body to be rejected")
	}
}

func TestParseOpDrivechain_RequiresTruthyTerminator(t *testing.T) {
	slot, ok := ParseOpDrivechain([]byte{opDrivechain, 3, 0x01})
	if !ok || slot != 3 {
		t.Fatalf("expected truthy terminator to parse, got slot=%d ok=%v", slot, ok)
	}
	if _, ok := ParseOpDrivechain([]byte{opDrivechain, 3, 0x00}); ok {
		t.Fatalf("expected falsy terminator to be rejected")
	}
	if _, ok := ParseOpDrivechain([]byte{0x00, 3, 0x01}); ok {
		t.Fatalf("expected wrong marker opcode to be rejected")
	}
}

func TestParseM8BmmRequest_RequiresExactLength(t *testing.T) {
	var sidechainHash, prevHash types.Hash256
	sidechainHash[0] = 1
	prevHash[0] = 2
	body := append([]byte{tagM8BmmRequest, 4}, append(append([]byte(nil), sidechainHash[:]...), prevHash[:]...)...)

	req, ok := ParseM8BmmRequest(body)
	if !ok {
		t.Fatalf("expected well-formed M8 script to parse")
	}
	if req.SidechainNumber != 4 || req.SidechainBlockHash != sidechainHash || req.PrevMainchainBlockHash != prevHash {
		t.Fatalf("unexpected parsed request: %+v", req)
	}

	if _, ok := ParseM8BmmRequest(body[:len(body)-1]); ok {
		t.Fatalf("expected truncated M8 script to be rejected")
	}
}
