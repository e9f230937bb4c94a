package blocksync

import (
	"errors"
	"fmt"

	cbytes "github.com/cinderchain/cinder/libs/bytes"
	"github.com/cinderchain/cinder/types"
)

// Message is a message passed between a peer session and its remote
// peer, in either direction.
type Message interface {
	ValidateBasic() error
	String() string
}

//-------------------------------------

// NewBlockHashesMessage announces blocks freshly minted or imported by
// the remote peer. Identifiers carry both the hash and the number of
// each announced block.
type NewBlockHashesMessage struct {
	Identifiers []types.BlockIdentifier `json:"identifiers"`
}

// ValidateBasic performs basic validation.
func (m *NewBlockHashesMessage) ValidateBasic() error {
	for _, id := range m.Identifiers {
		if len(id.Hash) == 0 {
			return errors.New("missing block hash in announcement")
		}
		if err := id.ValidateBasic(); err != nil {
			return err
		}
	}
	return nil
}

func (m *NewBlockHashesMessage) String() string {
	return fmt.Sprintf("[NewBlockHashes count %v]", len(m.Identifiers))
}

//-------------------------------------

// GetBlockHeadersMessage requests a batch of headers from the remote
// peer. Start names the origin block by hash or by number, Skip blocks
// are left out between any two returned headers, at most MaxHeaders
// headers are wanted and Reverse walks the chain towards lower numbers.
type GetBlockHeadersMessage struct {
	Start      types.BlockIdentifier `json:"start"`
	Skip       int64                 `json:"skip"`
	MaxHeaders int64                 `json:"max_headers"`
	Reverse    bool                  `json:"reverse"`
}

// ValidateBasic performs basic validation.
func (m *GetBlockHeadersMessage) ValidateBasic() error {
	if err := m.Start.ValidateBasic(); err != nil {
		return err
	}
	if m.Skip < 0 {
		return errors.New("negative Skip")
	}
	if m.MaxHeaders < 0 {
		return errors.New("negative MaxHeaders")
	}
	return nil
}

func (m *GetBlockHeadersMessage) String() string {
	return fmt.Sprintf("[GetBlockHeaders start %v skip %v max %v reverse %v]",
		m.Start, m.Skip, m.MaxHeaders, m.Reverse)
}

//-------------------------------------

// BlockHeadersMessage answers a GetBlockHeadersMessage with whatever
// subset of the requested headers the responding peer holds.
type BlockHeadersMessage struct {
	Headers []*types.Header `json:"headers"`
}

// ValidateBasic performs basic validation.
func (m *BlockHeadersMessage) ValidateBasic() error {
	for _, header := range m.Headers {
		if header == nil {
			return errors.New("nil header in response")
		}
		if err := header.ValidateBasic(); err != nil {
			return err
		}
	}
	return nil
}

func (m *BlockHeadersMessage) String() string {
	return fmt.Sprintf("[BlockHeaders count %v]", len(m.Headers))
}

//-------------------------------------

// GetBlockBodiesMessage requests body payloads by block hash.
type GetBlockBodiesMessage struct {
	Hashes []cbytes.HexBytes `json:"hashes"`
}

// ValidateBasic performs basic validation.
func (m *GetBlockBodiesMessage) ValidateBasic() error {
	for _, hash := range m.Hashes {
		if err := types.ValidateHash(hash); err != nil {
			return err
		}
		if len(hash) == 0 {
			return errors.New("empty block hash in request")
		}
	}
	return nil
}

func (m *GetBlockBodiesMessage) String() string {
	return fmt.Sprintf("[GetBlockBodies count %v]", len(m.Hashes))
}

//-------------------------------------

// BlockBodiesMessage answers a GetBlockBodiesMessage. Bodies preserves
// the order of the request, with misses omitted, so it may be shorter
// than the list of hashes asked for.
type BlockBodiesMessage struct {
	Bodies []types.Body `json:"bodies"`
}

// ValidateBasic performs basic validation.
func (m *BlockBodiesMessage) ValidateBasic() error {
	return nil
}

func (m *BlockBodiesMessage) String() string {
	return fmt.Sprintf("[BlockBodies count %v]", len(m.Bodies))
}
