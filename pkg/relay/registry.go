// Package relay implements the rendezvous and streaming engine: tickets,
// their state machines, the bounded chunk pipes that couple uploads to
// downloads, and the registry that serializes every transition.
package relay

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/bytebeam/internal/logger"
	"github.com/marmos91/bytebeam/pkg/keys"
	"github.com/marmos91/bytebeam/pkg/metrics"
)

// cullInterval is how often the background culler scans for stale tickets.
const cullInterval = 10 * time.Second

// mintAttempts bounds ID generation retries. Collisions only matter for
// short word templates; the UUID path never collides in practice.
const mintAttempts = 5

// TierName labels used in logs and metrics.
const (
	TierPublic        = "public"
	TierAuthenticated = "authenticated"
)

// Registry is the process-wide ticket table. Three parallel maps keyed by
// ticket ID hold the metadata, the producer ends and the consumer ends of
// each ticket's chunk pipe.
//
// Lock discipline: operations that touch more than one map take the locks
// in the fixed order files, uploads, downloads. No lock is ever held
// across a pipe send/receive or a network wait.
type Registry struct {
	public Tier
	authed Tier
	keys   *keys.Directory
	rm     metrics.Relay

	filesMu sync.Mutex
	files   map[string]*FileMetadata

	uploadsMu sync.Mutex
	uploads   map[string]*Producer

	downloadsMu sync.Mutex
	downloads   map[string]*Consumer
}

// NewRegistry builds a registry and spawns its culler. The culler stops
// when ctx is cancelled.
func NewRegistry(ctx context.Context, public, authed Tier, dir *keys.Directory, rm metrics.Relay) *Registry {
	r := &Registry{
		public:    public,
		authed:    authed,
		keys:      dir,
		rm:        rm,
		files:     make(map[string]*FileMetadata),
		uploads:   make(map[string]*Producer),
		downloads: make(map[string]*Consumer),
	}

	go r.cullLoop(ctx)

	return r
}

// PublicTier returns the anonymous tier parameters.
func (r *Registry) PublicTier() Tier {
	return r.public
}

// AuthenticatedTier returns the authenticated tier parameters.
func (r *Registry) AuthenticatedTier() Tier {
	return r.authed
}

// tierFor selects a ticket's tier by its authenticated flag.
func (r *Registry) tierFor(m *FileMetadata) Tier {
	if m.Authenticated {
		return r.authed
	}
	return r.public
}

// Len reports the number of live tickets.
func (r *Registry) Len() int {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()
	return len(r.files)
}

// Mint creates a new anonymous-tier ticket. The returned metadata is the
// only disclosure of the upload key.
func (r *Registry) Mint(fileName string, user *string) (*FileMetadata, error) {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()
	r.uploadsMu.Lock()
	defer r.uploadsMu.Unlock()
	r.downloadsMu.Lock()
	defer r.downloadsMu.Unlock()

	var meta *FileMetadata
	for range mintAttempts {
		candidate := newFileMetadata(r.public, fileName, user)
		if _, taken := r.files[candidate.Path]; !taken {
			meta = candidate
			break
		}
	}
	if meta == nil {
		return nil, fmt.Errorf("could not mint a unique ticket ID")
	}

	p := newPipe(r.public.CacheSize)
	r.files[meta.Path] = meta
	r.uploads[meta.Path] = &Producer{p: p}
	r.downloads[meta.Path] = &Consumer{p: p}

	r.rm.TicketMinted(TierPublic)
	r.rm.SetActiveTickets(len(r.files))

	return meta.Clone(), nil
}

// Upgrade re-keys a ticket onto the authenticated tier after any of the
// challenge responses verifies against the intended uploader's keys.
// Every response is tried; an already-authenticated ticket is returned
// unchanged. On failure nothing is touched and ErrUnauthorized is
// returned.
func (r *Registry) Upgrade(ticket string, responses []string) (*FileMetadata, error) {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	meta, ok := r.files[ticket]
	if !ok {
		return nil, ErrNotFound
	}

	if meta.AuthedUser == nil {
		r.rm.TicketUpgraded(false)
		return nil, ErrUnauthorized
	}

	if meta.Authenticated {
		return meta.Clone(), nil
	}

	verified := false
	for _, response := range responses {
		if r.keys != nil && r.keys.Verify(*meta.AuthedUser, meta.Challenge, response) {
			verified = true
			break
		}
	}
	if !verified {
		r.rm.TicketUpgraded(false)
		return nil, ErrUnauthorized
	}

	oldID := meta.Path
	meta.upgrade(r.authed)
	for range mintAttempts {
		if _, taken := r.files[meta.Path]; !taken {
			break
		}
		meta.upgrade(r.authed)
	}
	delete(r.files, oldID)
	r.files[meta.Path] = meta

	r.uploadsMu.Lock()
	defer r.uploadsMu.Unlock()
	r.downloadsMu.Lock()
	defer r.downloadsMu.Unlock()

	prod := r.uploads[oldID]
	cons := r.downloads[oldID]
	delete(r.uploads, oldID)
	delete(r.downloads, oldID)

	// Re-create the pipe at the authenticated capacity only while it is
	// untouched; a pipe that already carries chunks moves as-is.
	if prod != nil && prod.Capacity() == r.public.CacheSize && !prod.Used() {
		prod.Close()
		p := newPipe(r.authed.CacheSize)
		prod = &Producer{p: p}
		cons = &Consumer{p: p}
	}
	if prod != nil {
		r.uploads[meta.Path] = prod
	}
	if cons != nil {
		r.downloads[meta.Path] = cons
	}

	r.rm.TicketUpgraded(true)
	logger.Info("Ticket upgraded", logger.Ticket(meta.Path), logger.User(*meta.AuthedUser))

	return meta.Clone(), nil
}

// GetFileMetadata refreshes the accessed timestamp and returns a snapshot.
func (r *Registry) GetFileMetadata(ticket string) (*FileMetadata, error) {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	meta, ok := r.files[ticket]
	if !ok {
		return nil, ErrNotFound
	}
	meta.access()
	return meta.Clone(), nil
}

// BeginUpload locks the upload side and hands out a clone of the producer.
// The registry keeps its own handle so Delete can still tear the pipe
// down while the handler streams.
func (r *Registry) BeginUpload(ticket, key string) (*Producer, Tier, error) {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	meta, ok := r.files[ticket]
	if !ok {
		return nil, Tier{}, ErrNotFound
	}
	if meta.UploadLocked() {
		return nil, Tier{}, ErrConflict
	}
	if !meta.CheckKey(key) {
		return nil, Tier{}, ErrForbidden
	}

	r.uploadsMu.Lock()
	defer r.uploadsMu.Unlock()

	prod, ok := r.uploads[ticket]
	if !ok {
		return nil, Tier{}, ErrGone
	}

	meta.startUpload()
	return prod.Clone(), r.tierFor(meta), nil
}

// BeginDownload moves the consumer out of the registry and locks the
// download side. A Paused ticket resumes here.
func (r *Registry) BeginDownload(ticket string) (*Consumer, error) {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	meta, ok := r.files[ticket]
	if !ok {
		return nil, ErrNotFound
	}
	if meta.DownloadLocked() {
		if meta.DownloadFinished() {
			return nil, ErrGone
		}
		return nil, ErrConflict
	}

	r.downloadsMu.Lock()
	defer r.downloadsMu.Unlock()

	cons, ok := r.downloads[ticket]
	if !ok {
		return nil, fmt.Errorf("consumer missing for unlocked ticket %q", ticket)
	}

	delete(r.downloads, ticket)
	meta.startDownload()
	return cons, nil
}

// ReturnDownload gives the consumer back, flipping the download to Paused
// so a later BeginDownload can resume draining. Only an InProgress
// download may be returned.
func (r *Registry) ReturnDownload(ticket string, cons *Consumer) bool {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	meta, ok := r.files[ticket]
	if !ok || !meta.DownloadPausable() {
		return false
	}

	r.downloadsMu.Lock()
	defer r.downloadsMu.Unlock()

	r.downloads[ticket] = cons
	meta.pauseDownload()
	return true
}

// SetMetadata applies a partial update. Setting a compression other than
// none marks the declared size untrustworthy; setting none restores it.
func (r *Registry) SetMetadata(ticket string, name *string, size *int64, compression *Compression) bool {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	meta, ok := r.files[ticket]
	if !ok {
		return false
	}

	if name != nil {
		meta.FileName = *name
	}
	if size != nil {
		meta.FileSize.FileSize = *size
	}
	if compression != nil {
		meta.Compression = *compression
		meta.FileSize.Trustworthy = *compression == CompressionNone
	}
	return true
}

// AddTransferred bumps the monotonic byte counters and returns the new
// totals. The HTTP layer calls this from its progress samplers.
func (r *Registry) AddTransferred(ticket string, uploaded, downloaded int64) (int64, int64) {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	meta, ok := r.files[ticket]
	if !ok {
		return 0, 0
	}

	meta.FileSize.UploadedSize += uploaded
	meta.FileSize.DownloadedSize += downloaded

	r.rm.BytesUploaded(uploaded)
	r.rm.BytesDownloaded(downloaded)

	return meta.FileSize.UploadedSize, meta.FileSize.DownloadedSize
}

// EndUpload marks the upload complete.
func (r *Registry) EndUpload(ticket string) bool {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	meta, ok := r.files[ticket]
	if !ok {
		return false
	}
	meta.endUpload()
	return true
}

// EndDownload marks the download complete.
func (r *Registry) EndDownload(ticket string) bool {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	meta, ok := r.files[ticket]
	if !ok {
		return false
	}
	meta.endDownload()
	return true
}

// End marks both sides complete.
func (r *Registry) End(ticket string) bool {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	meta, ok := r.files[ticket]
	if !ok {
		return false
	}
	meta.endUpload()
	meta.endDownload()
	return true
}

// Delete removes the ticket from all three maps. Closing the pipe
// unblocks any pending producer or consumer, so in-flight transfers
// observe teardown rather than hanging.
func (r *Registry) Delete(ticket string) bool {
	r.filesMu.Lock()
	defer r.filesMu.Unlock()

	if _, ok := r.files[ticket]; !ok {
		return false
	}
	delete(r.files, ticket)

	r.uploadsMu.Lock()
	defer r.uploadsMu.Unlock()
	r.downloadsMu.Lock()
	defer r.downloadsMu.Unlock()

	if prod, ok := r.uploads[ticket]; ok {
		prod.Close()
		delete(r.uploads, ticket)
	}
	delete(r.downloads, ticket)

	r.rm.TicketDeleted()
	r.rm.SetActiveTickets(len(r.files))

	return true
}

// Cull drops tickets whose accessed age exceeds their tier's cull timeout
// and which are still waiting for either side to start. The key set is
// snapshotted under lock; deletion happens per ticket afterwards.
func (r *Registry) Cull() int {
	r.filesMu.Lock()
	var stale []string
	for id, meta := range r.files {
		if meta.IsInWaitingState() && meta.Age() > r.tierFor(meta).CullTime {
			stale = append(stale, id)
		}
	}
	r.filesMu.Unlock()

	for _, id := range stale {
		r.Delete(id)
		logger.Debug("Culled ticket", logger.Ticket(id))
	}

	r.rm.TicketsCulled(len(stale))
	return len(stale)
}

// cullLoop runs Cull every cullInterval until ctx is cancelled.
func (r *Registry) cullLoop(ctx context.Context) {
	ticker := time.NewTicker(cullInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Cull(); n > 0 {
				logger.Debug("Culled expired tickets", "count", n)
			}
		}
	}
}
