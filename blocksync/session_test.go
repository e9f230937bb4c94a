package blocksync

import (
	"context"
	"sync"
	"testing"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	dbm "github.com/tendermint/tm-db"

	"github.com/cinderchain/cinder/config"
	"github.com/cinderchain/cinder/libs/log"
	"github.com/cinderchain/cinder/libs/service"
	"github.com/cinderchain/cinder/store"
	"github.com/cinderchain/cinder/types"
	"github.com/cinderchain/cinder/version"
)

// testConn records messages a session sends to its remote peer.
type testConn struct {
	mtx     sync.Mutex
	peerID  types.NodeID
	sendErr error
	sent    []Message
}

func (c *testConn) Send(msg Message) error {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, msg)
	return nil
}

func (c *testConn) PeerID() types.NodeID { return c.peerID }

func (c *testConn) numSent() int {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return len(c.sent)
}

func (c *testConn) sentAt(i int) Message {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if i < 0 || i >= len(c.sent) {
		return nil
	}
	return c.sent[i]
}

type sessionFixture struct {
	session *Session
	conn    *testConn
	queue   *HeaderQueue
	store   *store.BlockStore
	cfg     *config.SyncConfig
}

// newFixture builds a started session against an in-memory chain of
// chainLen blocks.
func newFixture(ctx context.Context, t *testing.T, cfg *config.SyncConfig, chainLen int) *sessionFixture {
	t.Helper()

	logger := log.NewTestingLogger(t)
	bs := store.NewBlockStore(dbm.NewMemDB())
	for _, b := range types.MakeChain(0, chainLen) {
		require.NoError(t, bs.SaveBlock(b))
	}

	queue := NewHeaderQueue(logger, cfg, NopMetrics())
	conn := &testConn{peerID: testPeerID}

	s, err := NewSession(logger, cfg, version.SyncProtocol62, bs, queue, conn, NopMetrics())
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() {
		_ = s.Stop()
		s.Wait()
	})

	return &sessionFixture{session: s, conn: conn, queue: queue, store: bs, cfg: cfg}
}

func TestNewSessionValidation(t *testing.T) {
	logger := log.NewNopLogger()
	cfg := config.TestSyncConfig()
	bs := store.NewBlockStore(dbm.NewMemDB())
	queue := NewHeaderQueue(logger, cfg, NopMetrics())
	conn := &testConn{peerID: testPeerID}

	testCases := []struct {
		testName string
		make     func() (*Session, error)
	}{
		{"Nil blockchain", func() (*Session, error) {
			return NewSession(logger, cfg, version.SyncProtocol62, nil, queue, conn, nil)
		}},
		{"Nil queue", func() (*Session, error) {
			return NewSession(logger, cfg, version.SyncProtocol62, bs, nil, conn, nil)
		}},
		{"Nil connection", func() (*Session, error) {
			return NewSession(logger, cfg, version.SyncProtocol62, bs, queue, nil, nil)
		}},
		{"Invalid config", func() (*Session, error) {
			return NewSession(logger, &config.SyncConfig{}, version.SyncProtocol62, bs, queue, conn, nil)
		}},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.testName, func(t *testing.T) {
			_, err := tc.make()
			require.Error(t, err)
		})
	}

	_, err := NewSession(logger, cfg, version.Protocol(63), bs, queue, conn, nil)
	require.Error(t, err)
	var unsupported ErrUnsupportedProtocol
	require.ErrorAs(t, err, &unsupported)
	assert.EqualValues(t, 63, unsupported.Protocol)
}

func TestSessionLifecycle(t *testing.T) {
	t.Cleanup(leaktest.Check(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fix := newFixture(ctx, t, config.TestSyncConfig(), 1)
	s := fix.session

	require.True(t, s.IsRunning())
	require.Equal(t, StateIdle, s.State())
	require.ErrorIs(t, s.Start(ctx), service.ErrAlreadyStarted)

	require.NoError(t, s.Stop())
	s.Wait()
	require.False(t, s.IsRunning())

	// messages after stop are dropped
	s.Receive(&BlockHeadersMessage{Headers: types.ChainHeaders(types.MakeChain(1, 2))})
	assert.Equal(t, 0, fix.queue.HeaderStoreSize())
}

func TestSessionSetters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fix := newFixture(ctx, t, config.TestSyncConfig(), 1)
	s := fix.session

	assert.Equal(t, fix.cfg.MaxHashesAsk, s.MaxHashesAsk())
	s.SetMaxHashesAsk(7)
	assert.Equal(t, 7, s.MaxHashesAsk())

	terminal := types.MakeBlock(20, nil, []byte("terminal"))
	id := types.BlockIdentifier{Hash: terminal.Hash(), Number: 20}
	s.SetLastHashToAsk(id)

	// the stored identifier is a copy
	id.Hash[0] ^= 0xff
	assert.Equal(t, terminal.Hash(), s.LastHashToAsk().Hash)
	assert.EqualValues(t, 20, s.LastHashToAsk().Number)

	assert.Equal(t, testPeerID, s.PeerID())
}

func TestSessionIgnoresInvalidMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fix := newFixture(ctx, t, config.TestSyncConfig(), 1)

	// fails ValidateBasic, never dispatched
	fix.session.Receive(&GetBlockHeadersMessage{Start: types.BlockIdentifier{Number: -1}, MaxHeaders: 4})
	assert.Equal(t, 0, fix.conn.numSent())

	fix.session.Receive(nil)
	assert.Equal(t, 0, fix.conn.numSent())
	assert.Equal(t, StateIdle, fix.session.State())
}
