package types

import (
	"fmt"
	"time"

	cbytes "github.com/cinderchain/cinder/libs/bytes"
)

// MakeBlock builds a block whose body commitment is consistent with
// its payload. Intended for tests.
func MakeBlock(number int64, parentHash cbytes.HexBytes, payload []byte) *Block {
	body := Body(payload)
	header := &Header{
		Number:     number,
		ParentHash: parentHash.Copy(),
		BodyHash:   body.Hash(),
		Time:       time.Unix(1648000000+number, 0).UTC(),
	}
	return &Block{Header: header, Body: body}
}

// MakeChain builds n linked blocks starting at the given number, each
// with a distinct deterministic payload. Intended for tests.
func MakeChain(start int64, n int) []*Block {
	return MakeChainFrom(cbytes.HexBytes{}, start, n)
}

// MakeChainFrom builds n linked blocks continuing from the given
// parent hash. Intended for tests.
func MakeChainFrom(parent cbytes.HexBytes, start int64, n int) []*Block {
	blocks := make([]*Block, 0, n)
	for i := 0; i < n; i++ {
		number := start + int64(i)
		b := MakeBlock(number, parent, []byte(fmt.Sprintf("payload-%d", number)))
		blocks = append(blocks, b)
		parent = b.Hash()
	}
	return blocks
}

// ChainHeaders projects a chain of blocks onto its headers.
func ChainHeaders(blocks []*Block) []*Header {
	headers := make([]*Header, len(blocks))
	for i, b := range blocks {
		headers[i] = b.Header
	}
	return headers
}
