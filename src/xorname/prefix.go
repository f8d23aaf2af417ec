package xorname

import (
	"fmt"
	"strings"
)

// Prefix identifies a subtree of the XOR name space: the set of all Names
// whose first BitCount bits equal the corresponding bits of Base. A section is
// responsible for exactly one Prefix, and the Prefixes of all live sections
// partition the name space.
type Prefix struct {
	BitCount uint
	Base     Name
}

// NewPrefix creates a Prefix of the given bit count. Bits of base beyond
// bitCount are zeroed so that equal prefixes compare equal.
func NewPrefix(bitCount uint, base Name) Prefix {
	return Prefix{
		BitCount: bitCount,
		Base:     truncate(base, bitCount),
	}
}

// ParsePrefix converts a string of '0' and '1' characters, as produced by
// String, into a Prefix.
func ParsePrefix(s string) (Prefix, error) {
	var base Name
	if uint(len(s)) > NameLen*8 {
		return Prefix{}, fmt.Errorf("prefix too long: %d bits", len(s))
	}
	for i, c := range s {
		switch c {
		case '1':
			base = base.WithFlippedBit(uint(i))
		case '0':
		default:
			return Prefix{}, fmt.Errorf("invalid character %q in prefix", c)
		}
	}
	return Prefix{BitCount: uint(len(s)), Base: base}, nil
}

// Matches reports whether name belongs to the subtree identified by the
// Prefix.
func (p Prefix) Matches(name Name) bool {
	return truncate(name, p.BitCount) == p.Base
}

// ExtendedWith returns the child Prefix obtained by appending one bit.
func (p Prefix) ExtendedWith(bit bool) Prefix {
	base := p.Base
	if bit {
		base = base.WithFlippedBit(p.BitCount)
	}
	return Prefix{BitCount: p.BitCount + 1, Base: base}
}

// Sibling returns the Prefix covering the other half of the parent subtree.
// Calling Sibling on the empty prefix returns the empty prefix.
func (p Prefix) Sibling() Prefix {
	if p.BitCount == 0 {
		return p
	}
	return Prefix{
		BitCount: p.BitCount,
		Base:     p.Base.WithFlippedBit(p.BitCount - 1),
	}
}

// Popped returns the parent Prefix, one bit shorter.
func (p Prefix) Popped() Prefix {
	if p.BitCount == 0 {
		return p
	}
	return NewPrefix(p.BitCount-1, p.Base)
}

// IsCompatibleWith reports whether the two prefixes are identical or one is an
// extension of the other, meaning their subtrees overlap.
func (p Prefix) IsCompatibleWith(other Prefix) bool {
	min := p.BitCount
	if other.BitCount < min {
		min = other.BitCount
	}
	return truncate(p.Base, min) == truncate(other.Base, min)
}

// Midpoint returns the Name at the centre of the Prefix's range: the base
// followed by a one bit and zeroes. It is used as a stable reference point for
// distance tie-breaks within the section.
func (p Prefix) Midpoint() Name {
	if p.BitCount >= NameLen*8 {
		return p.Base
	}
	return p.Base.WithFlippedBit(p.BitCount)
}

// Equal reports whether the two prefixes are identical.
func (p Prefix) Equal(other Prefix) bool {
	return p.BitCount == other.BitCount && p.Base == other.Base
}

// String returns the bit-pattern representation, e.g. "0110". The empty prefix
// is rendered as "-".
func (p Prefix) String() string {
	if p.BitCount == 0 {
		return "-"
	}
	var b strings.Builder
	for i := uint(0); i < p.BitCount; i++ {
		if p.Base.Bit(i) {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

func truncate(name Name, bitCount uint) Name {
	var res Name
	fullBytes := bitCount / 8
	copy(res[:fullBytes], name[:fullBytes])
	if rem := bitCount % 8; rem != 0 {
		res[fullBytes] = name[fullBytes] & (byte(0xff) << (8 - rem))
	}
	return res
}
