package relay

import (
	"time"

	"github.com/marmos91/bytebeam/internal/bytesize"
)

// Tier bundles the admission and throttling parameters applied to tickets
// of one authentication status. Tiers are immutable after construction;
// a ticket picks one of the two configured tiers by its authenticated flag.
type Tier struct {
	// CacheSize is the number of chunks the bounded pipe may hold.
	CacheSize int

	// BlockSize is the target chunk size between producer and consumer.
	// Network reads are reassembled to this size before enqueueing.
	BlockSize int

	// CullTime is how long a ticket may sit in a waiting state before the
	// culler drops it.
	CullTime time.Duration

	// TokenFormat and UploadFormat are token templates for the ticket ID
	// and the upload key respectively.
	TokenFormat  string
	UploadFormat string

	// PacketDelay, when nonzero, is slept after each full block is
	// enqueued. This caps throughput at roughly BlockSize/PacketDelay.
	PacketDelay time.Duration
}

// DefaultPublicTier is the anonymous tier: a single-chunk buffer, UUID
// tokens and one block per second (about 4 kbps at the default block size).
func DefaultPublicTier() Tier {
	return Tier{
		CacheSize:    1,
		BlockSize:    4096,
		CullTime:     time.Hour,
		TokenFormat:  "{uuid}",
		UploadFormat: "{uuid}",
		PacketDelay:  time.Second,
	}
}

// DefaultAuthenticatedTier buffers up to 1 GiB of chunks, uses friendly
// word tokens and applies no pacing.
func DefaultAuthenticatedTier() Tier {
	return Tier{
		CacheSize:    int(bytesize.GiB) / 4096,
		BlockSize:    4096,
		CullTime:     time.Hour,
		TokenFormat:  "{number}-{word}-{word}-{word}",
		UploadFormat: "{number}-{word}-{word}-{word}",
		PacketDelay:  0,
	}
}
