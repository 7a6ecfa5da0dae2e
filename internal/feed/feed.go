// Package feed implements the Feed Client component (C1): connecting to
// an external source, listing the artifacts it offers, and handing
// their data back to the Record Parser (file-based feeds) or directly
// as canonical records (API feeds, which project their own JSON shape
// via fieldMapping/dataPath rather than going through the CSV parser).
package feed

import (
	"context"
	"time"

	"github.com/partsform/syncengine/internal/entity"
)

// FileRef describes one listed artifact on the remote feed, ahead of
// download.
type FileRef struct {
	Name       string
	Size       int64 // -1 when unknown
	ModifiedAt *time.Time
}

// RawRecord is one row/object fetched from a feed before the Record
// Parser's validation and normalization rules are applied. Keys are
// the canonical Part field names the record already carries (API
// feeds resolve fieldMapping themselves) or the raw header names (file
// feeds, resolved later by the Parser's own columnMapping).
type RawRecord map[string]string

// Client is the contract every file-based feed transport (FTP, SFTP)
// implements. Exactly one connection is open per call; a Client is
// built once per run and shared by that run's concurrent downloads,
// each DownloadToScratch call dialing its own connection (spec.md §4.1
// "one connection per download").
type Client interface {
	// Test performs a lightweight reachability/auth check without
	// downloading any data.
	Test(ctx context.Context) error

	// List returns the artifacts the Integration's FilePattern selects.
	List(ctx context.Context) ([]FileRef, error)

	// DownloadToScratch opens an isolated connection, streams ref to a
	// unique file under scratchDir, and closes. Returns the scratch
	// file's path for the Record Parser to stream from.
	DownloadToScratch(ctx context.Context, ref FileRef, scratchDir string) (string, error)
}

// RecordFetcher is implemented by API-kind feeds, which skip the
// scratch-file + CSV parser path entirely and hand canonical-ish
// records straight to the caller (spec.md §4.1 fetchAllRecords).
type RecordFetcher interface {
	// Test performs a lightweight reachability/auth check without
	// fetching a full page of records.
	Test(ctx context.Context) error

	// FetchAllRecords iterates every page per the Integration's
	// PaginationSpec, applying rate limiting and retry internally, and
	// invokes onBatch with each page's projected records. onProgress
	// reports a running total fetched so far.
	FetchAllRecords(ctx context.Context, onProgress func(fetched int), onBatch func(batch []RawRecord) error) error
}

// NewClient builds the file-based Client implementation matching
// integration.Kind. HTTP-API integrations use NewFetcher instead.
func NewClient(integration *entity.Integration) (Client, error) {
	if integration.Kind != entity.IntegrationKindFTP {
		return nil, entity.NewFeedError(entity.FeedErrorConfig, errUnknownKind)
	}
	if integration.FTP == nil {
		return nil, entity.NewFeedError(entity.FeedErrorConfig, errMissingFTPConfig)
	}
	if integration.FTP.Protocol == entity.FTPProtocolSFTP {
		return newSFTPClient(integration.FTP), nil
	}
	return newFTPClient(integration.FTP), nil
}

// NewFetcher builds the RecordFetcher for an HTTP-API or
// SpreadsheetFeed-kind integration.
func NewFetcher(integration *entity.Integration) (RecordFetcher, error) {
	if integration.Kind != entity.IntegrationKindHTTPAPI && integration.Kind != entity.IntegrationKindSpreadsheetFeed {
		return nil, entity.NewFeedError(entity.FeedErrorConfig, errUnknownKind)
	}
	if integration.API == nil {
		return nil, entity.NewFeedError(entity.FeedErrorConfig, errMissingAPIConfig)
	}
	return newHTTPClient(integration.API), nil
}
