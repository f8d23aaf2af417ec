package xorname

import (
	"testing"
)

func TestParsePrefix(t *testing.T) {
	prefix, err := ParsePrefix("0110")
	if err != nil {
		t.Fatal(err)
	}

	if prefix.BitCount != 4 {
		t.Fatalf("BitCount should be 4, not %d", prefix.BitCount)
	}

	if prefix.String() != "0110" {
		t.Fatalf("String should round-trip, got %s", prefix.String())
	}

	if _, err := ParsePrefix("01x0"); err == nil {
		t.Fatal("invalid characters should be rejected")
	}
}

func TestPrefixMatches(t *testing.T) {
	prefix, _ := ParsePrefix("10")

	inside := Name{}
	inside = inside.WithFlippedBit(0) //10...

	outside := Name{}
	outside = outside.WithFlippedBit(0)
	outside = outside.WithFlippedBit(1) //11...

	if !prefix.Matches(inside) {
		t.Fatal("10... should match prefix 10")
	}

	if prefix.Matches(outside) {
		t.Fatal("11... should not match prefix 10")
	}

	empty := Prefix{}
	if !empty.Matches(inside) || !empty.Matches(outside) {
		t.Fatal("the empty prefix should match everything")
	}
}

func TestExtendedWithAndPopped(t *testing.T) {
	prefix, _ := ParsePrefix("01")

	left := prefix.ExtendedWith(false)
	right := prefix.ExtendedWith(true)

	if left.String() != "010" || right.String() != "011" {
		t.Fatalf("children should be 010 and 011, got %s and %s", left, right)
	}

	if !left.Popped().Equal(prefix) || !right.Popped().Equal(prefix) {
		t.Fatal("Popped should restore the parent")
	}
}

func TestSibling(t *testing.T) {
	prefix, _ := ParsePrefix("010")
	sibling, _ := ParsePrefix("011")

	if !prefix.Sibling().Equal(sibling) {
		t.Fatalf("sibling of 010 should be 011, not %s", prefix.Sibling())
	}

	if !sibling.Sibling().Equal(prefix) {
		t.Fatal("Sibling should be an involution")
	}

	empty := Prefix{}
	if !empty.Sibling().Equal(empty) {
		t.Fatal("the empty prefix is its own sibling")
	}
}

func TestIsCompatibleWith(t *testing.T) {
	parent, _ := ParsePrefix("01")
	child, _ := ParsePrefix("011")
	other, _ := ParsePrefix("00")

	if !parent.IsCompatibleWith(child) || !child.IsCompatibleWith(parent) {
		t.Fatal("a prefix and its extension should be compatible")
	}

	if parent.IsCompatibleWith(other) {
		t.Fatal("01 and 00 should not be compatible")
	}
}

func TestMidpoint(t *testing.T) {
	prefix, _ := ParsePrefix("01")

	mid := prefix.Midpoint()

	if !prefix.Matches(mid) {
		t.Fatal("the midpoint should belong to the prefix")
	}

	if !mid.Bit(prefix.BitCount) {
		t.Fatal("the midpoint should have the bit after the prefix set")
	}
}

func TestNewPrefixTruncates(t *testing.T) {
	noisy := NewName([]byte("noise"))

	a := NewPrefix(3, noisy)
	b := NewPrefix(3, a.Base)

	if !a.Equal(b) {
		t.Fatal("prefixes with equal leading bits should compare equal")
	}
}
