package blocksync

import "fmt"

// SyncState enumerates the retrieval state of a peer session.
type SyncState uint8

const (
	// StateIdle means the session performs no retrieval work. It is the
	// initial state, and the session falls back to it whenever the
	// shared header queue runs dry.
	StateIdle = SyncState(0x01)
	// StateHashRetrieving means the session is walking the peer's chain
	// of headers forward, batch by batch.
	StateHashRetrieving = SyncState(0x02)
	// StateDoneHashRetrieving means header retrieval hit the terminal
	// hash the session was asked to stop at.
	StateDoneHashRetrieving = SyncState(0x03)
	// StateBlockRetrieving means the session is downloading body
	// payloads for headers drawn from the shared queue.
	StateBlockRetrieving = SyncState(0x04)
	// StateBlocksLack means the peer returned nothing useful for a body
	// request and an orchestrator should decide what to do with it.
	StateBlocksLack = SyncState(0x05)
)

// String returns a string
func (s SyncState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateHashRetrieving:
		return "HashRetrieving"
	case StateDoneHashRetrieving:
		return "DoneHashRetrieving"
	case StateBlockRetrieving:
		return "BlockRetrieving"
	case StateBlocksLack:
		return "BlocksLack"
	default:
		return fmt.Sprintf("SyncState(%d)", uint8(s))
	}
}
