// Package entity holds the canonical domain types for the sync engine:
// Integration configuration, the canonical Part record, and the
// in-memory/durable records that track a running sync.
package entity

import (
	"time"

	"github.com/google/uuid"
)

// Type aliases for domain IDs and temporal types, mirrored from the
// convention of aliasing uuid.UUID/time.Time per concept rather than
// passing bare types around.
type (
	IntegrationID = uuid.UUID
	SyncRequestID = uuid.UUID
	UserID        = uuid.UUID
)

// Now returns the current time truncated to UTC, the single place
// "current time" is produced so tests can reason about it.
func Now() time.Time {
	return time.Now().UTC()
}

// NowPtr is Now but returns a pointer, for optional timestamp fields.
func NowPtr() *time.Time {
	now := Now()
	return &now
}

// IntegrationKind identifies the transport a feed is reached over.
type IntegrationKind string

const (
	IntegrationKindFTP             IntegrationKind = "FTP"
	IntegrationKindHTTPAPI         IntegrationKind = "HTTP-API"
	IntegrationKindSpreadsheetFeed IntegrationKind = "SpreadsheetFeed"
)

// IntegrationStatus is the lifecycle state of an Integration.
type IntegrationStatus string

const (
	IntegrationStatusActive   IntegrationStatus = "active"
	IntegrationStatusInactive IntegrationStatus = "inactive"
	IntegrationStatusSyncing  IntegrationStatus = "syncing"
	IntegrationStatusError    IntegrationStatus = "error"
)

// FTPProtocol selects the concrete transport a Kind==FTP integration uses.
type FTPProtocol string

const (
	FTPProtocolPlain FTPProtocol = "ftp"
	FTPProtocolFTPS  FTPProtocol = "ftps"
	FTPProtocolSFTP  FTPProtocol = "sftp"
)

// FTPConfig holds FTP/FTPS/SFTP feed credentials and listing options.
type FTPConfig struct {
	Host          string
	Port          int
	User          string
	Secret        string // password or private key material
	RemotePath    string
	FilePattern   string // glob, case-insensitive, filenames only
	Protocol      FTPProtocol
	Secure        bool              // explicit TLS / FTPS when Protocol==ftp
	ColumnMapping map[string]string // source header -> canonical Part field
}

// AuthType is the authentication scheme for an HTTP-API feed.
type AuthType string

const (
	AuthTypeNone                     AuthType = "none"
	AuthTypeAPIKey                   AuthType = "api-key"
	AuthTypeBasic                    AuthType = "basic"
	AuthTypeBearer                   AuthType = "bearer"
	AuthTypeOAuth2ClientCredentials  AuthType = "oauth2-client-credentials"
)

// PaginationKind is the pagination strategy for an HTTP-API feed.
type PaginationKind string

const (
	PaginationNone       PaginationKind = "none"
	PaginationPage       PaginationKind = "page"
	PaginationOffset     PaginationKind = "offset"
	PaginationCursor     PaginationKind = "cursor"
	PaginationLinkHeader PaginationKind = "link-header"
)

// PaginationSpec describes how to walk a paginated HTTP-API feed.
type PaginationSpec struct {
	Kind           PaginationKind
	PageParam      string // e.g. "page"
	OffsetParam    string
	LimitParam     string
	LimitPerPage   int
	CursorBodyPath string // dot-path in response body to next cursor
	CursorParam    string
}

// APIConfig holds HTTP-API feed credentials and request shape.
type APIConfig struct {
	BaseURL        string
	AuthType       AuthType
	APIKeyHeader   string // header name when AuthType==api-key
	Secret         string
	Endpoints      []string
	Pagination     PaginationSpec
	RateLimitRPS   float64
	TimeoutSeconds int
	FieldMapping   map[string]string // canonical field -> source path
	DataPath       string            // dot-path projecting response to an array
}

// Frequency is a schedule cadence, independent of the cron expression
// it eventually translates to.
type Frequency string

const (
	FrequencyHourly      Frequency = "hourly"
	FrequencyEveryNHours Frequency = "everyNhours"
	FrequencyDaily       Frequency = "daily"
	FrequencyWeekly      Frequency = "weekly"
	FrequencyMonthly     Frequency = "monthly"
)

// Schedule is the cron-like configuration for an Integration.
type Schedule struct {
	Enabled     bool
	Frequency   Frequency
	EveryNHours int // valid set {2,3,4,6,8,12}, only when Frequency==everyNhours
	TimeOfDay   string // "HH:MM", for daily/weekly/monthly
	DaysOfWeek  []time.Weekday // for weekly, defaults to [Monday]
	DayOfMonth  int            // for monthly, defaults to 1
	Timezone    string         // IANA zone name, defaults to "UTC"
}

// RunErrorPolicy controls whether a partial file failure flips the
// overall run outcome to error or to success-with-errors. Exposed as a
// policy flag per spec.md §9 Open Questions.
type RunErrorPolicy string

const (
	RunErrorPolicyErrorOnAnyFailure    RunErrorPolicy = "error-on-any-failure"
	RunErrorPolicySuccessWithErrors    RunErrorPolicy = "success-with-errors"
)

// Options holds per-integration sync behavior toggles.
type Options struct {
	AutoSyncOnCreate bool
	DeltaSync        bool // skip cleaning phase, upsert-only (see DESIGN.md Open Question)
	RetryOnFail      bool
	MaxRetries       int
	RunErrorPolicy   RunErrorPolicy
	Concurrency      int // worker pool size, 2..30, default 20
	WebsitePriority  bool // lowers parallelism to ~6 and yields between batches
}

// Stats is a rolling counter of an Integration's sync history.
type Stats struct {
	TotalRecords      int64
	TotalSyncs        int64
	SuccessfulSyncs   int64
	FailedSyncs       int64
	LastSyncRecords   int64
}

// LastSyncFileResult records the outcome of one file/page within a run.
type LastSyncFileResult struct {
	Name        string
	Size        *int64
	RecordCount *int
	Status      string // success | failed
	Error       string
}

// LastSyncStatus is the terminal state of the most recent run.
type LastSyncStatus string

const (
	LastSyncStatusSuccess     LastSyncStatus = "success"
	LastSyncStatusFailed      LastSyncStatus = "failed"
	LastSyncStatusInterrupted LastSyncStatus = "interrupted"
)

// LastSync is the embedded outcome record of the most recent run.
type LastSync struct {
	Date            time.Time
	Status          LastSyncStatus
	DurationMs      int64
	Processed       int
	Inserted        int
	Updated         int
	Skipped         int
	Error           string
	IndexingError   string // best-effort search-mirror failure, never fails the sync
	Files           []LastSyncFileResult
}

// Integration is the configuration for one external feed.
type Integration struct {
	ID        IntegrationID
	Name      string
	Kind      IntegrationKind
	FTP       *FTPConfig
	API       *APIConfig
	Schedule  Schedule
	Options   Options
	Status    IntegrationStatus
	LastSync  *LastSync
	Stats     Stats
	CreatedBy UserID
	UpdatedBy UserID
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SafeView returns a copy of the Integration with all feed secrets
// masked, for use on any read path that may leave the process.
func (i *Integration) SafeView() Integration {
	cp := *i
	if i.FTP != nil {
		ftpCopy := *i.FTP
		ftpCopy.Secret = "********"
		cp.FTP = &ftpCopy
	}
	if i.API != nil {
		apiCopy := *i.API
		apiCopy.Secret = "********"
		cp.API = &apiCopy
	}
	return cp
}

// Price is a decimal, currency-tagged amount stored in minor units
// (cents) to avoid float rounding in prices.
type Price struct {
	MinorUnits int64
	Currency   string
}

// Part is the canonical normalized record produced by the engine.
type Part struct {
	PartNumber      string // uppercase-normalized
	Description     string
	Brand           string
	Supplier        string
	Price           *Price // nil when unset
	Quantity        int    // non-negative, 0 == out of stock
	DeliveryDays    *int   // nil when unknown
	Weight          *float64
	Condition       string
	UOM             string
	Category        string
	Subcategory     string
	Origin          string
	Attributes      map[string]string // passthrough unknown columns
	IntegrationID   IntegrationID
	IntegrationName string
	ImportedAt      time.Time
	LastUpdated     time.Time
}

// Key returns the identity tuple a Part is addressed by within the
// primary store: (integrationId, partNumber, supplier).
func (p *Part) Key() PartKey {
	return PartKey{
		IntegrationID: p.IntegrationID,
		PartNumber:    p.PartNumber,
		Supplier:      p.Supplier,
	}
}

// PartKey is the unique identity of a Part.
type PartKey struct {
	IntegrationID IntegrationID
	PartNumber    string
	Supplier      string
}

// SyncStatus is the top-level phase of a SyncProgress record.
type SyncStatus string

const (
	SyncStatusStarting  SyncStatus = "starting"
	SyncStatusSyncing   SyncStatus = "syncing"
	SyncStatusCompleted SyncStatus = "completed"
	SyncStatusError     SyncStatus = "error"
)

// SyncPhase is the fine-grained phase within a sync run.
type SyncPhase string

const (
	PhaseConnecting SyncPhase = "connecting"
	PhaseListing    SyncPhase = "listing"
	PhaseCleaning   SyncPhase = "cleaning"
	PhaseProcessing SyncPhase = "processing"
	PhaseIndexing   SyncPhase = "indexing"
	PhaseDone       SyncPhase = "done"
	PhaseFailed     SyncPhase = "failed"
)

// SyncProgress is the in-memory, live view of one integration's
// currently running (or recently finished) sync.
type SyncProgress struct {
	IntegrationID    IntegrationID
	Status           SyncStatus
	Phase            SyncPhase
	FilesTotal       int
	FilesProcessed   int
	RecordsTotal     int
	RecordsProcessed int
	RecordsInserted  int
	RecordsUpdated   int
	CurrentFile      string
	Errors           []string
	StartTime        time.Time
	UpdatedAt        time.Time
	ElapsedMs        int64
	Message          string
}

// SyncRequestStatus is the lifecycle of a queued SyncRequest (worker mode).
type SyncRequestStatus string

const (
	SyncRequestStatusPending    SyncRequestStatus = "pending"
	SyncRequestStatusProcessing SyncRequestStatus = "processing"
	SyncRequestStatusDone       SyncRequestStatus = "done"
	SyncRequestStatusFailed     SyncRequestStatus = "failed"
)

// SyncRequest is a durable queue entry used in worker mode: the
// Scheduler inserts one per cron fire, a worker process claims it
// atomically and invokes the Orchestrator.
type SyncRequest struct {
	ID            SyncRequestID
	IntegrationID IntegrationID
	Status        SyncRequestStatus
	CreatedAt     time.Time
	Source        string // "cron" | "manual"
	Progress      *SyncProgress
}
