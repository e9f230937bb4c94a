package blocksync

import (
	"bytes"
	"fmt"

	cbytes "github.com/cinderchain/cinder/libs/bytes"
	"github.com/cinderchain/cinder/types"
)

// v62Handler is the message handling strategy for sync protocol 62.
//
// Header retrieval walks the remote chain forward from the local best
// number in batches of maxHashesAsk until a header hashes to the
// terminal identifier latched at the start of the run. Body retrieval
// claims header batches from the shared queue, requests the matching
// bodies and pairs responses positionally, since the protocol carries
// no correlation IDs. Requests from the remote side are answered from
// local storage regardless of the retrieval state.
//
// All methods are invoked with the session mutex held.
type v62Handler struct {
	s *Session

	// headers with an outstanding body request, in request order.
	// Non-empty only between issuing a GetBlockBodies message and
	// fully processing its response or tearing the session down.
	sentHeaders []*types.Header

	// terminal identifier of the active header retrieval run
	terminalHash cbytes.HexBytes
}

func newV62Handler(s *Session) *v62Handler {
	return &v62Handler{s: s}
}

func (v *v62Handler) handle(msg Message) {
	switch m := msg.(type) {
	case *NewBlockHashesMessage:
		v.processNewBlockHashes(m)
	case *GetBlockHeadersMessage:
		v.processGetBlockHeaders(m)
	case *BlockHeadersMessage:
		v.processBlockHeaders(m)
	case *GetBlockBodiesMessage:
		v.processGetBlockBodies(m)
	case *BlockBodiesMessage:
		v.processBlockBodies(m)
	default:
		v.s.logger.Debug("ignoring unknown message type", "type", fmt.Sprintf("%T", msg))
	}
}

// startHeaderSync begins a header retrieval run at the block after the
// local best one, stopping once a received header hashes to the
// terminal identifier primed on the session.
func (v *v62Handler) startHeaderSync() {
	v.terminalHash = v.s.lastHashToAsk.Hash.Copy()
	best := v.s.chain.BestBlockNumber()
	v.sendGetBlockHeaders(best+1, v.s.maxHashesAsk)
}

// startBodySync begins body retrieval by claiming the first batch.
func (v *v62Handler) startBodySync() {
	v.requestNextBodyBatch()
}

// processNewBlockHashes chases at most one gap per announcement: the
// first announced block unknown both to the queue and to local
// storage, requested together with every announced block after it.
func (v *v62Handler) processNewBlockHashes(msg *NewBlockHashesMessage) {
	v.s.logger.Debug("processing NewBlockHashes", "count", len(msg.Identifiers))

	if len(msg.Identifiers) == 0 {
		return
	}

	lastNumber := msg.Identifiers[len(msg.Identifiers)-1].Number
	for _, id := range msg.Identifiers {
		if v.s.queue.HasBlock(id.Hash) || v.s.chain.BlockExists(id.Hash) {
			continue
		}
		span := lastNumber - id.Number + 1
		v.sendGetBlockHeaders(id.Number, int(span))
		return
	}
}

// processGetBlockHeaders serves a header request from local storage,
// in any retrieval state. The reply holds whatever subset exists and
// may be empty.
func (v *v62Handler) processGetBlockHeaders(msg *GetBlockHeadersMessage) {
	v.s.logger.Debug("processing GetBlockHeaders", "msg", msg)

	headers := v.s.chain.HeadersFrom(msg.Start, msg.Skip, msg.MaxHeaders, msg.Reverse)
	v.trySend(&BlockHeadersMessage{Headers: headers})
}

// processBlockHeaders stages a received header batch and asks for the
// next one. Responses outside of StateHashRetrieving and empty
// responses are ignored. A header hashing to the terminal identifier
// completes the run; the follow-up request goes out regardless, and
// the orchestrator subsumes it when it reads the completed state.
func (v *v62Handler) processBlockHeaders(msg *BlockHeadersMessage) {
	v.s.logger.Debug("processing BlockHeaders", "count", len(msg.Headers))

	if v.s.state != StateHashRetrieving {
		return
	}

	v.s.metrics.Headers.Add(float64(len(msg.Headers)))

	if len(msg.Headers) == 0 {
		return
	}

	v.s.queue.ValidateAndStore(msg.Headers, v.s.conn.PeerID())

	if len(v.terminalHash) > 0 {
		for _, header := range msg.Headers {
			if bytes.Equal(header.Hash(), v.terminalHash) {
				v.s.logger.Debug("got terminal hash", "hash", header.Hash())
				v.s.changeState(StateDoneHashRetrieving)
				v.s.logger.Info("header sync completed",
					"headers", v.s.queue.HeaderStoreSize())
				break
			}
		}
	}

	lastNumber := msg.Headers[len(msg.Headers)-1].Number
	v.sendGetBlockHeaders(lastNumber+1, v.s.maxHashesAsk)
}

// processGetBlockBodies serves a body request from local storage, in
// any retrieval state. The reply preserves request order and omits
// misses.
func (v *v62Handler) processGetBlockBodies(msg *GetBlockBodiesMessage) {
	v.s.logger.Debug("processing GetBlockBodies", "count", len(msg.Hashes))

	hashes := make([][]byte, 0, len(msg.Hashes))
	for _, hash := range msg.Hashes {
		hashes = append(hashes, hash)
	}
	bodies := v.s.chain.BodiesByHashes(hashes)
	v.trySend(&BlockBodiesMessage{Bodies: bodies})
}

// processBlockBodies pairs received bodies with the headers of the
// outstanding request, position by position, stopping at the first
// pair that fails the body commitment or when either side runs out.
// Headers left without a matching body go back to the queue. A
// non-empty response yielding no blocks at all moves the session to
// StateBlocksLack; otherwise body retrieval continues with the next
// batch.
func (v *v62Handler) processBlockBodies(msg *BlockBodiesMessage) {
	v.s.logger.Debug("processing BlockBodies", "count", len(msg.Bodies))

	v.s.metrics.Blocks.Add(float64(len(msg.Bodies)))

	var blocks []*types.Block
	matched := 0
	for matched < len(v.sentHeaders) && matched < len(msg.Bodies) {
		block, err := types.NewBlockFromBody(v.sentHeaders[matched], msg.Bodies[matched])
		if err != nil {
			v.s.logger.Debug("body does not match header",
				"header", v.sentHeaders[matched],
				"err", err)
			break
		}
		blocks = append(blocks, block)
		matched++
	}

	if remaining := v.sentHeaders[matched:]; len(remaining) > 0 {
		v.s.queue.ReturnHeaders(remaining)
		v.s.logger.Debug("return headers back to queue", "count", len(remaining))
	}
	v.sentHeaders = nil

	if len(blocks) > 0 {
		v.s.queue.StoreBlocks(blocks, v.s.conn.PeerID())
	} else if len(msg.Bodies) > 0 {
		v.s.changeState(StateBlocksLack)
	}

	if v.s.state == StateBlockRetrieving {
		v.requestNextBodyBatch()
	}
}

// requestNextBodyBatch claims one header batch from the queue and
// requests its bodies, recording the batch as the outstanding request.
// With the queue empty the session has no work and goes Idle; the
// report value tells the two apart.
func (v *v62Handler) requestNextBodyBatch() bool {
	batch := v.s.queue.PollHeaderBatch()
	if len(batch) == 0 {
		v.s.logger.Info("no more headers in queue, idle")
		v.s.changeState(StateIdle)
		return false
	}

	v.sentHeaders = batch

	hashes := make([]cbytes.HexBytes, 0, len(batch))
	for _, header := range batch {
		hashes = append(hashes, header.Hash())
	}
	v.s.logger.Debug("send GetBlockBodies", "count", len(hashes))
	v.trySend(&GetBlockBodiesMessage{Hashes: hashes})
	return true
}

// returnSentHeaders hands the outstanding batch back to the queue on
// teardown, so another session can claim it.
func (v *v62Handler) returnSentHeaders() {
	if len(v.sentHeaders) == 0 {
		return
	}
	v.s.queue.ReturnHeaders(v.sentHeaders)
	v.s.logger.Debug("return headers back to queue", "count", len(v.sentHeaders))
	v.sentHeaders = nil
}

func (v *v62Handler) sendGetBlockHeaders(number int64, maxHeaders int) {
	v.s.logger.Debug("send GetBlockHeaders", "number", number, "max", maxHeaders)
	v.trySend(&GetBlockHeadersMessage{
		Start:      types.BlockIdentifier{Number: number},
		MaxHeaders: int64(maxHeaders),
	})
}

// trySend hands a message to the connection. Send failures are logged
// and the operation abandoned; the orchestrator notices stalled
// sessions through their lack of progress.
func (v *v62Handler) trySend(msg Message) {
	if err := v.s.conn.Send(msg); err != nil {
		v.s.logger.Error("failed to send message", "msg", msg, "err", err)
	}
}
