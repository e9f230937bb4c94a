/*
Package blocksync implements the per-peer block synchronization
protocol for sync protocol version 62.

Each peer connection that completes the protocol handshake gets one
Session. A Session drives header and body retrieval from its remote
peer, reacts to unsolicited new-block announcements, and answers the
same requests when the remote side asks, all in a request/response
model without protocol-level correlation IDs. Responses are correlated
with requests positionally, so response ordering is assumed to match
request ordering.

Synchronization advances through a small state register. A session
retrieving headers walks the remote chain forward batch by batch and
stages validated headers in a queue shared by all sessions of the
node. A session retrieving bodies claims staged headers, fetches
their body payloads, and assembles full blocks that wait in the same
queue for the node's import logic. The states DoneHashRetrieving and
BlocksLack are advisory: an external orchestrator reads them through
State and re-arms the session through ChangeState, deciding which
peer does what and when a peer should be dropped.

The package does not own wire framing, the connection lifecycle, or
multi-peer scheduling. Sessions reach their collaborators through
narrow interfaces: a Blockchain view of local chain storage and a
Connection for outbound messages.
*/
package blocksync
