package feed

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jlaffaye/ftp"

	"github.com/partsform/syncengine/internal/entity"
)

// ftpClient implements Client over plain FTP or explicit-TLS FTPS,
// using a single connection opened lazily per call and closed
// immediately after (spec.md §4.1 "one connection per download").
type ftpClient struct {
	cfg *entity.FTPConfig
}

func newFTPClient(cfg *entity.FTPConfig) *ftpClient {
	return &ftpClient{cfg: cfg}
}

func (c *ftpClient) dial(ctx context.Context) (*ftp.ServerConn, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	opts := []ftp.DialOption{
		ftp.DialWithContext(ctx),
		ftp.DialWithTimeout(30 * time.Second),
	}
	if c.cfg.Secure {
		opts = append(opts, ftp.DialWithExplicitTLS(nil))
	}

	conn, err := ftp.Dial(addr, opts...)
	if err != nil {
		return nil, entity.NewFeedError(entity.FeedErrorUnreachable, err)
	}

	if err := conn.Login(c.cfg.User, c.cfg.Secret); err != nil {
		conn.Quit() //nolint:errcheck
		return nil, entity.NewFeedError(entity.FeedErrorAuth, err)
	}

	return conn, nil
}

func (c *ftpClient) Test(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer conn.Quit() //nolint:errcheck

	if c.cfg.RemotePath != "" {
		if _, err := conn.List(c.cfg.RemotePath); err != nil {
			return entity.NewFeedError(entity.FeedErrorNotFound, err)
		}
	}
	return nil
}

func (c *ftpClient) List(ctx context.Context) ([]FileRef, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Quit() //nolint:errcheck

	dir := c.cfg.RemotePath
	if dir == "" {
		dir = "."
	}

	entries, err := conn.List(dir)
	if err != nil {
		return nil, entity.NewFeedError(entity.FeedErrorNotFound, err)
	}

	var refs []FileRef
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		if !matchesPattern(e.Name, c.cfg.FilePattern) {
			continue
		}
		refs = append(refs, FileRef{Name: path.Join(dir, e.Name), Size: int64(e.Size)})
	}
	if len(refs) == 0 {
		return nil, entity.NewFeedError(entity.FeedErrorNotFound, errPatternMismatch)
	}
	return refs, nil
}

// DownloadToScratch opens an isolated connection (never shared with a
// sibling download), streams ref into a uniquely named file under
// scratchDir, and closes both ends before returning.
func (c *ftpClient) DownloadToScratch(ctx context.Context, ref FileRef, scratchDir string) (string, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Quit() //nolint:errcheck

	resp, err := conn.Retr(ref.Name)
	if err != nil {
		return "", entity.NewFeedError(entity.FeedErrorUnreachable, err)
	}
	defer resp.Close() //nolint:errcheck

	scratchPath := filepath.Join(scratchDir, uuid.NewString()+"_"+filepath.Base(ref.Name))
	out, err := os.Create(scratchPath)
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp); err != nil {
		os.Remove(scratchPath) //nolint:errcheck
		return "", entity.NewFeedError(entity.FeedErrorUnreachable, err)
	}

	return scratchPath, nil
}

// matchesPattern does a case-insensitive glob-style match restricted
// to filenames (no path separators), per the FilePattern contract.
func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}
	lower := strings.ToLower(name)
	return globMatch(strings.ToLower(pattern), lower)
}

// globMatch matches name against pattern with path.Match ('*', '?' and
// '[...]' classes); a malformed pattern matches nothing.
func globMatch(pattern, name string) bool {
	ok, err := path.Match(pattern, name)
	if err != nil {
		return false
	}
	return ok
}
