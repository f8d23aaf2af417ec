package xorname

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/sectornet/routing/src/crypto"
)

// NameLen is the size of a Name in bytes.
const NameLen = 32

// Name is a 256-bit address in the XOR name space. Nodes and data are assigned
// Names, and the distance between two Names is the bitwise XOR of their values,
// interpreted as a big-endian integer.
type Name [NameLen]byte

// NewName hashes the given material (typically the uncompressed form of a
// public key) into a Name.
func NewName(material []byte) Name {
	var n Name
	copy(n[:], crypto.SHA256(material))
	return n
}

// FromBytes creates a Name from a raw 32-byte slice.
func FromBytes(b []byte) (Name, error) {
	var n Name
	if len(b) != NameLen {
		return n, fmt.Errorf("wrong Name length: got %d, want %d", len(b), NameLen)
	}
	copy(n[:], b)
	return n, nil
}

// Bit returns the value of the i-th bit, counting from the most significant.
func (n Name) Bit(i uint) bool {
	return n[i/8]&(1<<(7-i%8)) != 0
}

// WithFlippedBit returns a copy of the Name with the i-th bit flipped.
func (n Name) WithFlippedBit(i uint) Name {
	res := n
	res[i/8] ^= 1 << (7 - i%8)
	return res
}

// CmpDistance compares the distances of lhs and rhs from n. It returns -1 if
// lhs is closer, 1 if rhs is closer, and 0 if they are equidistant.
func (n Name) CmpDistance(lhs, rhs Name) int {
	for i := 0; i < NameLen; i++ {
		dl := n[i] ^ lhs[i]
		dr := n[i] ^ rhs[i]
		if dl < dr {
			return -1
		}
		if dl > dr {
			return 1
		}
	}
	return 0
}

// CloserTo reports whether n is strictly closer to target than other is.
func (n Name) CloserTo(target, other Name) bool {
	return target.CmpDistance(n, other) == -1
}

// Cmp imposes a total order on Names, independent of any distance metric. It
// is used as a deterministic tie-break where two Names are equidistant from a
// target.
func (n Name) Cmp(other Name) int {
	return bytes.Compare(n[:], other[:])
}

// Hex returns the full lowercase hexadecimal representation of the Name.
func (n Name) Hex() string {
	return hex.EncodeToString(n[:])
}

// String returns an abbreviated representation for logging.
func (n Name) String() string {
	return fmt.Sprintf("%.6x..", n[:])
}
