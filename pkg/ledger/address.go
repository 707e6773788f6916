package ledger

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/mr-tron/base58"
)

// ProgramID namespaces every derived address so they cannot collide with other programs.
const ProgramID = "recurring-payments"

const derivedAddressMarker = "ProgramDerivedAddress"

// DeriveAddress deterministically derives an identity from seed material. Seeds are hashed
// length-prefixed, so splitting the same bytes differently yields a different address.
func DeriveAddress(seeds ...[]byte) string {
	h := sha256.New()
	h.Write(EncodeSeeds(seeds...))
	h.Write([]byte(ProgramID))
	h.Write([]byte(derivedAddressMarker))
	return base58.Encode(h.Sum(nil))
}

// EncodeSeeds packs seeds into a single opaque byte string.
func EncodeSeeds(seeds ...[]byte) []byte {
	var buf bytes.Buffer
	for _, seed := range seeds {
		buf.Write(binary.AppendUvarint(nil, uint64(len(seed))))
		buf.Write(seed)
	}
	return buf.Bytes()
}

// DecodeSeeds reverses EncodeSeeds.
func DecodeSeeds(b []byte) ([][]byte, error) {
	var seeds [][]byte
	for len(b) > 0 {
		n, read := binary.Uvarint(b)
		if read <= 0 || uint64(len(b)-read) < n {
			return nil, fmt.Errorf("%w: malformed seed encoding", ErrInvalidBatch)
		}
		b = b[read:]
		seeds = append(seeds, b[:n:n])
		b = b[n:]
	}
	return seeds, nil
}

// TokenAccountAddress derives the canonical token account of owner for currency.
func TokenAccountAddress(owner, currency string) string {
	return DeriveAddress([]byte(owner), []byte(currency), []byte("token"))
}
