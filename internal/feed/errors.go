package feed

import "errors"

var (
	errMissingFTPConfig = errors.New("FTP integration missing FTP config")
	errMissingAPIConfig = errors.New("API integration missing API config")
	errUnknownKind      = errors.New("unknown integration kind")
	errPatternMismatch  = errors.New("no remote file matched the configured pattern")
)
