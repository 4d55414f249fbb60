package relay

import (
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/bytebeam/pkg/token"
)

// State is one side of a ticket's transfer state machine.
type State string

const (
	StateNotStarted State = "NotStarted"
	StateInProgress State = "InProgress"
	StatePaused     State = "Paused"
	StateComplete   State = "Complete"
)

// redacted is the sentinel substituted for fields a downloader must not see.
const redacted = "null"

// FileSize tracks everything the server knows about a ticket's length.
//
// The declared size only means anything when no compression is in effect:
// senders declare the on-disk size, but the relayed bytes are the encoded
// ones. Trustworthy is flipped false the moment a compression is set.
type FileSize struct {
	// FileSize is the sender-declared size in bytes; 0 means undeclared.
	FileSize int64 `json:"file_size"`

	// UploadedSize and DownloadedSize are running byte counts.
	UploadedSize   int64 `json:"uploaded_size"`
	DownloadedSize int64 `json:"downloaded_size"`

	// UploadComplete is set once the upload's sentinel has been enqueued.
	UploadComplete bool `json:"upload_complete"`

	// Trustworthy is true iff no compression is in effect.
	Trustworthy bool `json:"file_size_trustworthy"`
}

// ContentLength resolves the effective Content-Length: the declared size if
// trustworthy, else the uploaded count once the upload completed, else
// nothing.
func (f FileSize) ContentLength() (int64, bool) {
	if f.Trustworthy && f.FileSize > 0 {
		return f.FileSize, true
	}
	if f.UploadComplete {
		return f.UploadedSize, true
	}
	return 0, false
}

// FileMetadata is the unit of rendezvous: one short-lived ticket joining a
// sender and a receiver. All mutation happens under the registry's lock;
// callers outside the registry only ever see clones.
type FileMetadata struct {
	FileName    string      `json:"file_name"`
	FileSize    FileSize    `json:"file_size"`
	Compression Compression `json:"compression"`

	// Path is the opaque ticket ID used in URLs. UploadKey is the separate
	// secret required to POST the payload, so a leaked download URL does
	// not also grant upload.
	Path      string `json:"path"`
	UploadKey string `json:"upload_key"`

	Upload   State `json:"upload"`
	Download State `json:"download"`

	Created  time.Time `json:"created"`
	Accessed time.Time `json:"accessed"`

	// AuthedUser is the user the creator named as the intended uploader;
	// nil for anonymous tickets.
	AuthedUser *string `json:"authed_user"`

	// Challenge is signed by AuthedUser to prove key ownership.
	Challenge string `json:"challenge"`

	// Authenticated flips true after a successful upgrade. Irreversible.
	Authenticated bool `json:"authenticated"`
}

// newFileMetadata mints a fresh ticket under the given tier's templates.
func newFileMetadata(tier Tier, fileName string, user *string) *FileMetadata {
	now := time.Now().UTC()
	return &FileMetadata{
		FileName:    fileName,
		FileSize:    FileSize{Trustworthy: true},
		Compression: CompressionNone,
		Path:        token.Generate(tier.TokenFormat),
		UploadKey:   token.Generate(tier.UploadFormat),
		Upload:      StateNotStarted,
		Download:    StateNotStarted,
		Created:     now,
		Accessed:    now,
		AuthedUser:  user,
		Challenge:   uuid.NewString(),
	}
}

// Clone returns a consistent copy safe to hand outside the registry lock.
func (m *FileMetadata) Clone() *FileMetadata {
	c := *m
	if m.AuthedUser != nil {
		u := *m.AuthedUser
		c.AuthedUser = &u
	}
	return &c
}

// CheckKey reports whether key matches the upload key.
func (m *FileMetadata) CheckKey(key string) bool {
	return m.UploadKey == key
}

// UploadLocked reports whether another upload may no longer start.
func (m *FileMetadata) UploadLocked() bool {
	return m.Upload == StateInProgress || m.Upload == StateComplete
}

// DownloadLocked reports whether another download may no longer start.
func (m *FileMetadata) DownloadLocked() bool {
	return m.Download == StateInProgress || m.Download == StateComplete
}

// DownloadFinished reports whether the download ran to completion.
func (m *FileMetadata) DownloadFinished() bool {
	return m.Download == StateComplete
}

// DownloadPausable reports whether the consumer may be returned.
func (m *FileMetadata) DownloadPausable() bool {
	return m.Download == StateInProgress
}

func (m *FileMetadata) startUpload() {
	m.Upload = StateInProgress
}

func (m *FileMetadata) endUpload() {
	m.Upload = StateComplete
	m.FileSize.UploadComplete = true
}

func (m *FileMetadata) startDownload() {
	m.Download = StateInProgress
}

func (m *FileMetadata) pauseDownload() {
	m.Download = StatePaused
}

func (m *FileMetadata) endDownload() {
	m.Download = StateComplete
}

// access refreshes the accessed timestamp.
func (m *FileMetadata) access() {
	m.Accessed = time.Now().UTC()
}

// Age is the time since the ticket was last accessed.
func (m *FileMetadata) Age() time.Duration {
	return time.Since(m.Accessed)
}

// IsInWaitingState reports whether either side has yet to start; only
// waiting tickets are eligible for culling.
func (m *FileMetadata) IsInWaitingState() bool {
	return m.Upload == StateNotStarted || m.Download == StateNotStarted
}

// upgrade reissues the ticket under the authenticated tier's templates.
func (m *FileMetadata) upgrade(tier Tier) {
	m.Authenticated = true
	m.Path = token.Generate(tier.TokenFormat)
	m.UploadKey = token.Generate(tier.UploadFormat)
	m.access()
}

// Redact returns a copy safe for public status responses: the upload key
// and file name are replaced with a sentinel, and when compression is in
// effect every field that would leak the sender-side length is zeroed.
func (m *FileMetadata) Redact() *FileMetadata {
	c := m.Clone()
	c.FileName = redacted
	c.UploadKey = redacted
	if c.Compression != CompressionNone && c.Compression != "" {
		c.FileSize.FileSize = 0
	}
	return c
}
