package types

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cinderchain/cinder/crypto"
	cbytes "github.com/cinderchain/cinder/libs/bytes"
)

// Header is the metadata of a block: its position in the chain, the
// linkage to its parent and the commitment to its body payload.
type Header struct {
	Number     int64           `json:"number"`
	ParentHash cbytes.HexBytes `json:"parent_hash"`
	BodyHash   cbytes.HexBytes `json:"body_hash"`
	Time       time.Time       `json:"time"`
}

// Hash computes the keccak-256 digest of the canonical header
// encoding: fixed-width big-endian number, parent hash, body hash,
// big-endian unix time.
func (h *Header) Hash() cbytes.HexBytes {
	var scratch [8]byte
	buf := make([]byte, 0, 16+len(h.ParentHash)+len(h.BodyHash))

	binary.BigEndian.PutUint64(scratch[:], uint64(h.Number))
	buf = append(buf, scratch[:]...)
	buf = append(buf, h.ParentHash...)
	buf = append(buf, h.BodyHash...)
	binary.BigEndian.PutUint64(scratch[:], uint64(h.Time.Unix()))
	buf = append(buf, scratch[:]...)

	return crypto.Keccak256(buf)
}

// ValidateBasic performs stateless validation of a header as it
// arrives off the wire.
func (h *Header) ValidateBasic() error {
	if h == nil {
		return errors.New("nil header")
	}
	if h.Number < 0 {
		return errors.New("negative Number")
	}
	if err := ValidateHash(h.ParentHash); err != nil {
		return fmt.Errorf("wrong ParentHash: %w", err)
	}
	if len(h.BodyHash) == 0 {
		return errors.New("missing BodyHash")
	}
	if err := ValidateHash(h.BodyHash); err != nil {
		return fmt.Errorf("wrong BodyHash: %w", err)
	}
	return nil
}

func (h *Header) String() string {
	if h == nil {
		return "nil-Header"
	}
	return fmt.Sprintf("Header{#%d %v}", h.Number, h.Hash().ShortString())
}

// ValidateHash returns an error if the hash is not empty, but its
// size != crypto.HashSize.
func ValidateHash(h []byte) error {
	if len(h) > 0 && len(h) != crypto.HashSize {
		return fmt.Errorf("expected size to be %d bytes, got %d bytes",
			crypto.HashSize,
			len(h),
		)
	}
	return nil
}

// Body is the opaque payload of a block. Its content is committed to
// by the BodyHash field of the owning header; nothing at this layer
// interprets it.
type Body []byte

// Hash computes the keccak-256 digest of the payload.
func (b Body) Hash() cbytes.HexBytes {
	return crypto.Keccak256(b)
}

// ErrBodyMismatch is returned when a body payload does not hash to the
// commitment declared by the header it is paired with.
var ErrBodyMismatch = errors.New("body does not match header commitment")

// Block pairs a header with the body it commits to.
type Block struct {
	Header *Header `json:"header"`
	Body   Body    `json:"body"`
}

// NewBlockFromBody assembles a block from a header and a body payload
// received separately. It fails if the payload does not hash to the
// header's body commitment, producing no block.
func NewBlockFromBody(header *Header, body Body) (*Block, error) {
	if header == nil {
		return nil, errors.New("nil header")
	}
	if !header.BodyHash.Equal(body.Hash()) {
		return nil, ErrBodyMismatch
	}
	return &Block{Header: header, Body: body}, nil
}

// Hash returns the hash of the block's header.
func (b *Block) Hash() cbytes.HexBytes {
	return b.Header.Hash()
}

// Number returns the block's position in the chain.
func (b *Block) Number() int64 {
	return b.Header.Number
}

func (b *Block) String() string {
	if b == nil {
		return "nil-Block"
	}
	return fmt.Sprintf("Block{#%d %v body=%d}", b.Header.Number, b.Hash().ShortString(), len(b.Body))
}

// BlockIdentifier is the (hash, number) pair carried by new-block
// announcements and used as the origin of header range requests. A
// range request may name its origin by hash or by number, leaving the
// other side unset.
type BlockIdentifier struct {
	Hash   cbytes.HexBytes `json:"hash"`
	Number int64           `json:"number"`
}

// ValidateBasic performs stateless validation of a block identifier.
// An identifier may name a block by hash, by number, or both; context
// decides which sides are required.
func (id BlockIdentifier) ValidateBasic() error {
	if id.Number < 0 {
		return errors.New("negative Number")
	}
	if err := ValidateHash(id.Hash); err != nil {
		return fmt.Errorf("wrong Hash: %w", err)
	}
	return nil
}

func (id BlockIdentifier) String() string {
	return fmt.Sprintf("%v (#%d)", id.Hash.ShortString(), id.Number)
}
