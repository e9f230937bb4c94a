package blocksync

import (
	"sort"
	"sync"

	"github.com/cinderchain/cinder/config"
	"github.com/cinderchain/cinder/libs/log"
	"github.com/cinderchain/cinder/types"
)

// HeaderQueue stages sync work shared by all peer sessions of a node.
// Headers recovered from peers wait here until some session claims them
// for body retrieval, and finished blocks wait here for the importer.
//
// Headers are staged in ascending number order and deduplicated by
// hash. Every operation is atomic with respect to every other, so
// sessions may use the queue concurrently without further locking.
type HeaderQueue struct {
	logger  log.Logger
	metrics *Metrics

	batchSize int
	limit     int

	mtx         sync.Mutex
	headers     []*types.Header
	headerIndex map[string]struct{}
	blocks      []*types.Block
	blockIndex  map[string]struct{}
}

// NewHeaderQueue returns an empty queue. Batch size and the header
// cap come from the sync section of the node config.
func NewHeaderQueue(logger log.Logger, cfg *config.SyncConfig, metrics *Metrics) *HeaderQueue {
	if cfg == nil {
		cfg = config.DefaultSyncConfig()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	return &HeaderQueue{
		logger:      logger,
		metrics:     metrics,
		batchSize:   cfg.MaxBodiesAsk,
		limit:       cfg.QueueLimit,
		headerIndex: map[string]struct{}{},
		blockIndex:  map[string]struct{}{},
	}
}

// HasBlock reports whether a block with the given hash is staged in
// the queue, either as a bare header or as a finished block.
func (q *HeaderQueue) HasBlock(hash []byte) bool {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if _, ok := q.headerIndex[string(hash)]; ok {
		return true
	}
	_, ok := q.blockIndex[string(hash)]
	return ok
}

// ValidateAndStore stages the given headers for body retrieval,
// dropping any header that fails validation, duplicates an already
// staged hash, or arrives while the queue is at its cap. It returns
// the number of headers accepted.
func (q *HeaderQueue) ValidateAndStore(headers []*types.Header, peerID types.NodeID) int {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	accepted := 0
	for _, header := range headers {
		if header == nil {
			continue
		}
		if err := header.ValidateBasic(); err != nil {
			q.logger.Error("rejected invalid header",
				"header", header,
				"peer", peerID.Short(),
				"err", err)
			continue
		}
		if q.limit > 0 && len(q.headers) >= q.limit {
			q.logger.Debug("queue limit reached, dropping header",
				"header", header,
				"peer", peerID.Short())
			continue
		}
		if q.stage(header) {
			accepted++
		}
	}

	q.updateGauges()
	return accepted
}

// ReturnHeaders hands back headers a session claimed but could not
// turn into blocks. Returned headers are always accepted, regardless
// of the queue cap.
func (q *HeaderQueue) ReturnHeaders(headers []*types.Header) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	for _, header := range headers {
		if header == nil {
			continue
		}
		q.stage(header)
	}

	q.updateGauges()
}

// stage inserts a header in number order unless its hash is already
// staged. The caller must hold q.mtx.
func (q *HeaderQueue) stage(header *types.Header) bool {
	hash := string(header.Hash())
	if _, ok := q.headerIndex[hash]; ok {
		return false
	}
	if _, ok := q.blockIndex[hash]; ok {
		return false
	}

	i := sort.Search(len(q.headers), func(j int) bool {
		return q.headers[j].Number > header.Number
	})
	q.headers = append(q.headers, nil)
	copy(q.headers[i+1:], q.headers[i:])
	q.headers[i] = header
	q.headerIndex[hash] = struct{}{}
	return true
}

// PollHeaderBatch claims up to one batch of staged headers, lowest
// numbers first, removing them from the queue. It returns nil when the
// queue holds no headers.
func (q *HeaderQueue) PollHeaderBatch() []*types.Header {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	n := q.batchSize
	if n > len(q.headers) {
		n = len(q.headers)
	}
	if n == 0 {
		return nil
	}

	batch := make([]*types.Header, n)
	copy(batch, q.headers[:n])
	q.headers = append(q.headers[:0], q.headers[n:]...)
	for _, header := range batch {
		delete(q.headerIndex, string(header.Hash()))
	}

	q.updateGauges()
	return batch
}

// StoreBlocks stages finished blocks for the importer, dropping any
// block whose hash is already staged. A hash still staged as a bare
// header moves to the block stage.
func (q *HeaderQueue) StoreBlocks(blocks []*types.Block, peerID types.NodeID) {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	for _, block := range blocks {
		if block == nil {
			continue
		}
		hash := string(block.Hash())
		if _, ok := q.blockIndex[hash]; ok {
			continue
		}
		if _, ok := q.headerIndex[hash]; ok {
			q.dropHeader(hash)
		}

		i := sort.Search(len(q.blocks), func(j int) bool {
			return q.blocks[j].Number() > block.Number()
		})
		q.blocks = append(q.blocks, nil)
		copy(q.blocks[i+1:], q.blocks[i:])
		q.blocks[i] = block
		q.blockIndex[hash] = struct{}{}

		q.logger.Debug("staged block", "block", block, "peer", peerID.Short())
	}

	q.updateGauges()
}

// dropHeader removes the staged header with the given hash. The caller
// must hold q.mtx.
func (q *HeaderQueue) dropHeader(hash string) {
	for i, header := range q.headers {
		if string(header.Hash()) == hash {
			q.headers = append(q.headers[:i], q.headers[i+1:]...)
			break
		}
	}
	delete(q.headerIndex, hash)
}

// PopBlocks drains up to max staged blocks, lowest numbers first. The
// importer side consumes the queue through this.
func (q *HeaderQueue) PopBlocks(max int) []*types.Block {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	if max <= 0 || max > len(q.blocks) {
		max = len(q.blocks)
	}
	if max == 0 {
		return nil
	}

	popped := make([]*types.Block, max)
	copy(popped, q.blocks[:max])
	q.blocks = append(q.blocks[:0], q.blocks[max:]...)
	for _, block := range popped {
		delete(q.blockIndex, string(block.Hash()))
	}

	q.updateGauges()
	return popped
}

// HeaderStoreSize returns the number of staged headers.
func (q *HeaderQueue) HeaderStoreSize() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return len(q.headers)
}

// BlockStoreSize returns the number of staged blocks.
func (q *HeaderQueue) BlockStoreSize() int {
	q.mtx.Lock()
	defer q.mtx.Unlock()
	return len(q.blocks)
}

// updateGauges publishes the stage sizes. The caller must hold q.mtx.
func (q *HeaderQueue) updateGauges() {
	q.metrics.StagedHeaders.Set(float64(len(q.headers)))
	q.metrics.StagedBlocks.Set(float64(len(q.blocks)))
}
