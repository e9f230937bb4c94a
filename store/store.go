package store

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/orderedcode"
	dbm "github.com/tendermint/tm-db"

	"github.com/cinderchain/cinder/types"
)

/*
BlockStore is a simple low level store for the chain.

There are three types of information stored:
 - Header:     block headers, keyed by block number
 - Body:       opaque block body payloads, keyed by block number
 - Hash index: block hash -> block number

The store can be assumed to contain all contiguous blocks between its
base and best number (inclusive).

// NOTE: BlockStore methods will panic if they encounter errors
// deserializing loaded data, indicating probable corruption on disk.
*/
type BlockStore struct {
	db dbm.DB
}

// NewBlockStore returns a new BlockStore with the given DB.
func NewBlockStore(db dbm.DB) *BlockStore {
	return &BlockStore{db}
}

// Base returns the first known contiguous block number, or 0 for empty
// block stores.
func (bs *BlockStore) Base() int64 {
	number, _ := bs.baseNumber()
	return number
}

func (bs *BlockStore) baseNumber() (int64, bool) {
	iter, err := bs.db.Iterator(
		headerKey(0),
		headerKey(1<<63-1),
	)
	if err != nil {
		panic(err)
	}
	defer iter.Close()

	if iter.Valid() {
		number, err := decodeHeaderKey(iter.Key())
		if err == nil {
			return number, true
		}
	}
	if err := iter.Error(); err != nil {
		panic(err)
	}

	return 0, false
}

// BestBlockNumber returns the last known contiguous block number, or 0
// for empty block stores.
func (bs *BlockStore) BestBlockNumber() int64 {
	number, _ := bs.bestNumber()
	return number
}

func (bs *BlockStore) bestNumber() (int64, bool) {
	iter, err := bs.db.ReverseIterator(
		headerKey(0),
		headerKey(1<<63-1),
	)
	if err != nil {
		panic(err)
	}
	defer iter.Close()

	if iter.Valid() {
		number, err := decodeHeaderKey(iter.Key())
		if err == nil {
			return number, true
		}
	}
	if err := iter.Error(); err != nil {
		panic(err)
	}

	return 0, false
}

// Size returns the number of blocks in the block store.
func (bs *BlockStore) Size() int64 {
	best, ok := bs.bestNumber()
	if !ok {
		return 0
	}
	base, _ := bs.baseNumber()
	return best + 1 - base
}

// BlockExists reports whether a block with the given hash has been
// saved to the store.
func (bs *BlockStore) BlockExists(hash []byte) bool {
	bz, err := bs.db.Get(blockHashKey(hash))
	if err != nil {
		panic(err)
	}
	return len(bz) > 0
}

// LoadHeader returns the header of the block with the given number.
// If no block is found for that number, it returns nil.
func (bs *BlockStore) LoadHeader(number int64) *types.Header {
	bz, err := bs.db.Get(headerKey(number))
	if err != nil {
		panic(err)
	}
	if len(bz) == 0 {
		return nil
	}

	header := new(types.Header)
	if err := json.Unmarshal(bz, header); err != nil {
		panic(fmt.Errorf("unmarshal header: %w", err))
	}

	return header
}

// LoadHeaderByHash returns the header of the block with the given hash.
// If no block is found for that hash, it returns nil.
// Panics if it fails to parse the number associated with the given hash.
func (bs *BlockStore) LoadHeaderByHash(hash []byte) *types.Header {
	bz, err := bs.db.Get(blockHashKey(hash))
	if err != nil {
		panic(err)
	}
	if len(bz) == 0 {
		return nil
	}

	s := string(bz)
	number, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		panic(fmt.Sprintf("failed to extract number from %s: %v", s, err))
	}
	return bs.LoadHeader(number)
}

// LoadBody returns the body payload of the block with the given number.
// If no block is found for that number, it returns nil.
func (bs *BlockStore) LoadBody(number int64) types.Body {
	bz, err := bs.db.Get(bodyKey(number))
	if err != nil {
		panic(err)
	}
	if len(bz) == 0 {
		return nil
	}
	return types.Body(bz)
}

// HeadersFrom reads headers beginning at the start identifier, which
// may name its origin block by hash or by number. skip blocks are left
// out between any two returned headers, at most max headers are
// returned and reverse walks the chain towards lower numbers. The
// result holds whatever subset exists locally and may be shorter than
// max, or empty.
func (bs *BlockStore) HeadersFrom(start types.BlockIdentifier, skip, max int64, reverse bool) []*types.Header {
	if max <= 0 {
		return nil
	}

	number := start.Number
	if len(start.Hash) > 0 {
		origin := bs.LoadHeaderByHash(start.Hash)
		if origin == nil {
			return nil
		}
		number = origin.Number
	}

	step := skip + 1
	if step < 1 {
		step = 1
	}

	var headers []*types.Header
	for int64(len(headers)) < max && number >= 0 {
		header := bs.LoadHeader(number)
		if header == nil {
			break
		}
		headers = append(headers, header)
		if reverse {
			number -= step
		} else {
			number += step
		}
	}

	return headers
}

// BodiesByHashes looks up body payloads by block hash. The result
// preserves the order of the request and omits misses, so it may be
// shorter than the input.
func (bs *BlockStore) BodiesByHashes(hashes [][]byte) []types.Body {
	bodies := make([]types.Body, 0, len(hashes))
	for _, hash := range hashes {
		header := bs.LoadHeaderByHash(hash)
		if header == nil {
			continue
		}
		if body := bs.LoadBody(header.Number); body != nil {
			bodies = append(bodies, body)
		}
	}
	return bodies
}

// SaveBlock persists the given block to the underlying db, extending
// the contiguous chain held by the store. The first block saved to an
// empty store may carry any number; every further block must directly
// follow the best one.
func (bs *BlockStore) SaveBlock(block *types.Block) error {
	if block == nil {
		panic("BlockStore can only save a non-nil block")
	}

	number := block.Number()
	hash := block.Hash()

	if best, ok := bs.bestNumber(); ok && number != best+1 {
		return fmt.Errorf("BlockStore can only save contiguous blocks. Wanted %v, got %v", best+1, number)
	}

	batch := bs.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(headerKey(number), mustEncode(block.Header)); err != nil {
		return err
	}
	if err := batch.Set(bodyKey(number), block.Body); err != nil {
		return err
	}
	if err := batch.Set(blockHashKey(hash), []byte(fmt.Sprintf("%d", number))); err != nil {
		return err
	}

	return batch.WriteSync()
}

// Close closes the underlying db.
func (bs *BlockStore) Close() error {
	return bs.db.Close()
}

//---------------------------------- KEY ENCODING -----------------------------------------

// key prefixes
const (
	// prefixes are unique across all cinder db's
	prefixHeader    = int64(0)
	prefixBody      = int64(1)
	prefixBlockHash = int64(2)
)

func headerKey(number int64) []byte {
	key, err := orderedcode.Append(nil, prefixHeader, number)
	if err != nil {
		panic(err)
	}
	return key
}

func decodeHeaderKey(key []byte) (number int64, err error) {
	var prefix int64
	remaining, err := orderedcode.Parse(string(key), &prefix, &number)
	if err != nil {
		return
	}
	if len(remaining) != 0 {
		return -1, fmt.Errorf("expected complete key but got remainder: %s", remaining)
	}
	if prefix != prefixHeader {
		return -1, fmt.Errorf("incorrect prefix. Expected %v, got %v", prefixHeader, prefix)
	}
	return
}

func bodyKey(number int64) []byte {
	key, err := orderedcode.Append(nil, prefixBody, number)
	if err != nil {
		panic(err)
	}
	return key
}

func blockHashKey(hash []byte) []byte {
	key, err := orderedcode.Append(nil, prefixBlockHash, string(hash))
	if err != nil {
		panic(err)
	}
	return key
}

//-----------------------------------------------------------------------------

// mustEncode json encodes a value and panics if it fails.
func mustEncode(v interface{}) []byte {
	bz, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("unable to marshal: %w", err))
	}
	return bz
}
