package blocksync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cinderchain/cinder/config"
	"github.com/cinderchain/cinder/libs/log"
	"github.com/cinderchain/cinder/libs/service"
	"github.com/cinderchain/cinder/types"
	"github.com/cinderchain/cinder/version"
)

// Blockchain is the view of local chain storage a session works
// against. Implemented by store.BlockStore.
type Blockchain interface {
	// BestBlockNumber returns the number of the best locally known
	// block, or 0 for empty chains.
	BestBlockNumber() int64

	// BlockExists reports whether the block with the given hash has
	// been persisted locally.
	BlockExists(hash []byte) bool

	// HeadersFrom reads up to max locally stored headers beginning at
	// start, leaving out skip blocks between any two, walking towards
	// lower numbers if reverse is set. The result may be shorter than
	// max, or empty.
	HeadersFrom(start types.BlockIdentifier, skip, max int64, reverse bool) []*types.Header

	// BodiesByHashes looks up body payloads by block hash, preserving
	// request order and omitting misses.
	BodiesByHashes(hashes [][]byte) []types.Body
}

// Connection is the outbound half of the wire connection a session
// serves. Send hands a message to the transport for delivery to the
// remote peer and must not call back into the session.
type Connection interface {
	Send(msg Message) error
	PeerID() types.NodeID
}

// versionHandler is the message handling strategy negotiated for a
// session. Every hook is invoked with the session mutex held.
type versionHandler interface {
	// startHeaderSync is invoked on entering StateHashRetrieving.
	startHeaderSync()
	// startBodySync is invoked on entering StateBlockRetrieving.
	startBodySync()
	// handle processes one validated inbound message.
	handle(msg Message)
	// returnSentHeaders hands headers with an outstanding body request
	// back to the queue. Invoked on session teardown.
	returnSentHeaders()
}

var _ service.Service = (*Session)(nil)

// Session drives block synchronization against a single remote peer.
// It is created once the connection handshake has negotiated a
// protocol version, fed inbound messages through Receive, re-armed by
// the node's sync orchestrator through ChangeState, and stopped when
// the connection closes.
//
// A session starts out Idle. The orchestrator primes the terminal
// identifier and batch size, then moves the session to
// StateHashRetrieving or StateBlockRetrieving; from there the session
// advances itself until it runs out of work or reaches an advisory
// state the orchestrator reads back through State.
type Session struct {
	service.BaseService
	logger log.Logger

	chain   Blockchain
	queue   *HeaderQueue
	conn    Connection
	metrics *Metrics
	handler versionHandler

	mtx           sync.Mutex
	state         SyncState
	lastHashToAsk types.BlockIdentifier
	maxHashesAsk  int
}

// NewSession returns a session speaking the given protocol version on
// behalf of conn. It returns ErrUnsupportedProtocol if no strategy is
// registered for the version.
func NewSession(
	logger log.Logger,
	cfg *config.SyncConfig,
	protocol version.Protocol,
	chain Blockchain,
	queue *HeaderQueue,
	conn Connection,
	metrics *Metrics,
) (*Session, error) {
	if cfg == nil {
		cfg = config.DefaultSyncConfig()
	}
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("invalid sync config: %w", err)
	}
	if chain == nil {
		return nil, errors.New("session requires a blockchain")
	}
	if queue == nil {
		return nil, errors.New("session requires a header queue")
	}
	if conn == nil {
		return nil, errors.New("session requires a connection")
	}
	if metrics == nil {
		metrics = NopMetrics()
	}

	s := &Session{
		logger:       logger.With("peer", conn.PeerID().Short()),
		chain:        chain,
		queue:        queue,
		conn:         conn,
		metrics:      metrics,
		state:        StateIdle,
		maxHashesAsk: cfg.MaxHashesAsk,
	}

	switch protocol {
	case version.SyncProtocol62:
		s.handler = newV62Handler(s)
	default:
		return nil, ErrUnsupportedProtocol{Protocol: protocol}
	}

	s.BaseService = *service.NewBaseService(s.logger, "Session", s)
	return s, nil
}

// OnStart implements service.Service.
func (s *Session) OnStart(ctx context.Context) error {
	return nil
}

// OnStop implements service.Service. Headers claimed for an in-flight
// body request go back to the queue so another session can pick them
// up.
func (s *Session) OnStop() {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.handler.returnSentHeaders()
}

// Receive processes one inbound message. The connection's read path
// delivers messages sequentially; teardown may run concurrently.
// Messages arriving on a stopped session, and messages that fail
// validation, are dropped.
func (s *Session) Receive(msg Message) {
	if msg == nil {
		return
	}
	if !s.IsRunning() {
		s.logger.Debug("dropping message, session not running", "msg", msg)
		return
	}
	if err := msg.ValidateBasic(); err != nil {
		s.logger.Error("dropping invalid message", "msg", msg, "err", err)
		return
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.handler.handle(msg)
}

// State returns the current retrieval state.
func (s *Session) State() SyncState {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.state
}

// ChangeState moves the session to the given retrieval state and runs
// the strategy hook the new state calls for. Changing to the current
// state is a no-op, so repeated re-arms and repeated terminal
// detections collapse into one transition.
func (s *Session) ChangeState(newState SyncState) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.changeState(newState)
}

// changeState requires s.mtx to be held.
func (s *Session) changeState(newState SyncState) {
	if s.state == newState {
		return
	}
	s.logger.Debug("sync state changed", "from", s.state, "to", newState)
	s.state = newState

	switch newState {
	case StateHashRetrieving:
		s.handler.startHeaderSync()
	case StateBlockRetrieving:
		s.handler.startBodySync()
	}
}

// SetLastHashToAsk sets the identifier of the block header retrieval
// stops at. The orchestrator primes it before moving the session to
// StateHashRetrieving.
func (s *Session) SetLastHashToAsk(id types.BlockIdentifier) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.lastHashToAsk = types.BlockIdentifier{
		Hash:   id.Hash.Copy(),
		Number: id.Number,
	}
}

// LastHashToAsk returns the terminal identifier of the current or next
// header retrieval run.
func (s *Session) LastHashToAsk() types.BlockIdentifier {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.lastHashToAsk
}

// SetMaxHashesAsk sets the number of headers requested per batch.
func (s *Session) SetMaxHashesAsk(maxHashesAsk int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.maxHashesAsk = maxHashesAsk
}

// MaxHashesAsk returns the number of headers requested per batch.
func (s *Session) MaxHashesAsk() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.maxHashesAsk
}

// PeerID returns the remote peer's node ID.
func (s *Session) PeerID() types.NodeID {
	return s.conn.PeerID()
}
