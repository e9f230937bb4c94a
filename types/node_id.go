package types

import (
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// NodeIDByteLength is the length of the raw node identifier issued by
// the transport handshake.
const NodeIDByteLength = 32

// reNodeID is a regexp for valid node IDs.
var reNodeID = regexp.MustCompile(`^[0-9a-f]{64}$`)

// NodeID is a hex-encoded peer identifier. It must be lowercased
// (for uniqueness) and of length 2*NodeIDByteLength.
type NodeID string

// NewNodeID returns a lowercased (normalized) NodeID, or errors if the
// node ID is invalid.
func NewNodeID(nodeID string) (NodeID, error) {
	n := NodeID(strings.ToLower(nodeID))
	return n, n.Validate()
}

// Bytes converts the node ID to its binary byte representation.
func (id NodeID) Bytes() ([]byte, error) {
	bz, err := hex.DecodeString(string(id))
	if err != nil {
		return nil, fmt.Errorf("invalid node ID encoding: %w", err)
	}
	return bz, nil
}

// Short returns the truncated display form of the node ID used in log
// output.
func (id NodeID) Short() string {
	if len(id) < 8 {
		return string(id)
	}
	return string(id[:8])
}

// Validate validates the NodeID.
func (id NodeID) Validate() error {
	switch {
	case len(id) == 0:
		return errors.New("empty node ID")

	case len(id) != 2*NodeIDByteLength:
		return fmt.Errorf("invalid node ID length %d, expected %d", len(id), 2*NodeIDByteLength)

	case !reNodeID.MatchString(string(id)):
		return errors.New("node ID can only contain lowercased hex digits")

	default:
		return nil
	}
}
