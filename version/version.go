package version

var (
	// GitCommit is the current HEAD set using ldflags.
	GitCommit string

	// Version is the built softwares version.
	Version string = CinderSemVer
)

func init() {
	if GitCommit != "" {
		Version += "-" + GitCommit
	}
}

const (
	// CinderSemVer is the current version of the cinder libraries.
	// It's the Semantic Version of the software.
	CinderSemVer = "0.3.0"
)

// Protocol is used for implementation agnostic versioning.
type Protocol uint64

// Uint64 returns the Protocol version as a uint64,
// eg. for compatibility with handshake status fields.
func (p Protocol) Uint64() uint64 {
	return uint64(p)
}

var (
	// BlockProtocol versions all block data structures and processing.
	BlockProtocol Protocol = 1

	// SyncProtocol62 is the block synchronization wire protocol built
	// around header range requests and positional body correlation. The
	// protocol negotiated during the connection handshake selects the
	// message handling strategy of a peer session.
	SyncProtocol62 Protocol = 62
)
