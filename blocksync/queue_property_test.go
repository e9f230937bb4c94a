package blocksync

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cinderchain/cinder/config"
	"github.com/cinderchain/cinder/libs/log"
	"github.com/cinderchain/cinder/types"
)

// TestHeaderQueueProperties drives a queue through random custody
// transitions and checks that no header is ever lost or duplicated:
// at any point a header is untouched, staged, claimed, finished into a
// block or popped, and never in two places at once.
func TestHeaderQueueProperties(t *testing.T) {
	rapid.Check(t, rapid.Run(&queueModel{}))
}

const (
	locFresh   = "fresh"
	locStaged  = "staged"
	locClaimed = "claimed"
	locBlock   = "block"
	locDone    = "done"
)

type queueModel struct {
	queue     *HeaderQueue
	chain     []*types.Block
	batchSize int

	loc map[int64]string
}

func (m *queueModel) Init(t *rapid.T) {
	cfg := config.TestSyncConfig()
	cfg.QueueLimit = 1024

	m.queue = NewHeaderQueue(log.NewNopLogger(), cfg, NopMetrics())
	m.chain = types.MakeChain(0, 64)
	m.batchSize = cfg.MaxBodiesAsk
	m.loc = make(map[int64]string, len(m.chain))
	for _, b := range m.chain {
		m.loc[b.Number()] = locFresh
	}
}

func (m *queueModel) numbersAt(loc string) []int64 {
	var numbers []int64
	for _, b := range m.chain {
		if m.loc[b.Number()] == loc {
			numbers = append(numbers, b.Number())
		}
	}
	return numbers
}

// drawWindow picks a contiguous window of the ascending numbers
// currently at loc, or nil if there are none.
func (m *queueModel) drawWindow(t *rapid.T, loc string) []int64 {
	numbers := m.numbersAt(loc)
	if len(numbers) == 0 {
		return nil
	}
	count := rapid.IntRange(1, len(numbers)).Draw(t, "count").(int)
	start := rapid.IntRange(0, len(numbers)-count).Draw(t, "start").(int)
	return numbers[start : start+count]
}

func (m *queueModel) headersFor(numbers []int64) []*types.Header {
	headers := make([]*types.Header, 0, len(numbers))
	for _, n := range numbers {
		headers = append(headers, m.chain[n].Header)
	}
	return headers
}

func (m *queueModel) Stage(t *rapid.T) {
	window := m.drawWindow(t, locFresh)
	if window == nil {
		return
	}
	accepted := m.queue.ValidateAndStore(m.headersFor(window), testPeerID)
	require.Equal(t, len(window), accepted)
	for _, n := range window {
		m.loc[n] = locStaged
	}
}

func (m *queueModel) StageDuplicates(t *rapid.T) {
	window := m.drawWindow(t, locStaged)
	if window == nil {
		return
	}
	require.Zero(t, m.queue.ValidateAndStore(m.headersFor(window), testPeerID))
}

func (m *queueModel) Claim(t *rapid.T) {
	staged := m.numbersAt(locStaged)
	batch := m.queue.PollHeaderBatch()
	if len(staged) == 0 {
		require.Empty(t, batch)
		return
	}
	want := staged
	if len(want) > m.batchSize {
		want = want[:m.batchSize]
	}
	require.Equal(t, want, headerNumbersOf(batch))
	for _, n := range want {
		m.loc[n] = locClaimed
	}
}

func (m *queueModel) Return(t *rapid.T) {
	window := m.drawWindow(t, locClaimed)
	if window == nil {
		return
	}
	m.queue.ReturnHeaders(m.headersFor(window))
	for _, n := range window {
		m.loc[n] = locStaged
	}
}

func (m *queueModel) Complete(t *rapid.T) {
	window := m.drawWindow(t, locClaimed)
	if window == nil {
		return
	}
	blocks := make([]*types.Block, 0, len(window))
	for _, n := range window {
		blocks = append(blocks, m.chain[n])
	}
	m.queue.StoreBlocks(blocks, testPeerID)
	for _, n := range window {
		m.loc[n] = locBlock
	}
}

func (m *queueModel) Pop(t *rapid.T) {
	finished := m.numbersAt(locBlock)
	max := rapid.IntRange(1, m.batchSize+2).Draw(t, "max").(int)
	popped := m.queue.PopBlocks(max)
	if len(finished) == 0 {
		require.Empty(t, popped)
		return
	}
	want := finished
	if len(want) > max {
		want = want[:max]
	}
	numbers := make([]int64, 0, len(popped))
	for _, b := range popped {
		numbers = append(numbers, b.Number())
	}
	require.Equal(t, want, numbers)
	for _, n := range want {
		m.loc[n] = locDone
	}
}

func (m *queueModel) Check(t *rapid.T) {
	require.Equal(t, len(m.numbersAt(locStaged)), m.queue.HeaderStoreSize())
	require.Equal(t, len(m.numbersAt(locBlock)), m.queue.BlockStoreSize())

	// only staged headers and finished blocks are visible; claimed
	// headers are in flight and fresh or popped ones are unknown
	for _, b := range m.chain {
		known := m.loc[b.Number()] == locStaged || m.loc[b.Number()] == locBlock
		require.Equal(t, known, m.queue.HasBlock(b.Hash()))
	}
}
