package nonce

import (
	"testing"
)

const (
	addrA = "30009:3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d:pizza-party"
	addrB = "30009:3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d:workshop"
)

func TestMintDeterminism(t *testing.T) {
	c, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}

	n1 := c.Mint(addrA, 1000)
	n2 := c.Mint(addrA, 1000)
	if n1 != n2 {
		t.Errorf("Mint() not deterministic: %s != %s", n1, n2)
	}
	if len(n1) != 64 {
		t.Errorf("Mint() length = %d, want 64 hex chars", len(n1))
	}

	// Changing either input changes the output.
	if c.Mint(addrA, 1001) == n1 {
		t.Error("Mint() did not change with expiry")
	}
	if c.Mint(addrB, 1000) == n1 {
		t.Error("Mint() did not change with address")
	}
}

func TestMintNoCollisionsAcrossSample(t *testing.T) {
	c, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}

	seen := make(map[string]int64)
	for exp := int64(0); exp < 5000; exp++ {
		n := c.Mint(addrA, exp)
		if prev, dup := seen[n]; dup {
			t.Fatalf("collision between expiry %d and %d", prev, exp)
		}
		seen[n] = exp
	}
}

func TestSessionIsolation(t *testing.T) {
	c1, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}
	c2, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}

	if c1.Mint(addrA, 1000) == c2.Mint(addrA, 1000) {
		t.Error("two sessions minted the same nonce for identical inputs")
	}
	if c2.Verify(c1.Mint(addrA, 1000), addrA, 1000) {
		t.Error("nonce from another session verified")
	}
}

func TestVerify(t *testing.T) {
	c, err := NewCodec()
	if err != nil {
		t.Fatalf("NewCodec() error: %v", err)
	}

	n := c.Mint(addrA, 1000)
	if !c.Verify(n, addrA, 1000) {
		t.Error("Verify() rejected a freshly minted nonce")
	}

	// Cross-badge: a nonce minted for badge A must not verify for badge B.
	if c.Verify(n, addrB, 1000) {
		t.Error("Verify() accepted a nonce minted for another badge")
	}

	if c.Verify(n, addrA, 1001) {
		t.Error("Verify() accepted a nonce with a different expiry")
	}
	if c.Verify("deadbeef", addrA, 1000) {
		t.Error("Verify() accepted a tampered nonce")
	}
	if c.Verify("", addrA, 1000) {
		t.Error("Verify() accepted an empty nonce")
	}
	if c.Verify("not even hex!", addrA, 1000) {
		t.Error("Verify() accepted malformed input")
	}
}
