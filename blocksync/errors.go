package blocksync

import (
	"fmt"

	"github.com/cinderchain/cinder/version"
)

// ErrUnsupportedProtocol is returned when a session is created for a
// protocol version no message handling strategy is registered for.
type ErrUnsupportedProtocol struct {
	Protocol version.Protocol
}

func (e ErrUnsupportedProtocol) Error() string {
	return fmt.Sprintf("no sync strategy registered for protocol %v", e.Protocol)
}
