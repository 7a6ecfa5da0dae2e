package feed

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/partsform/syncengine/internal/entity"
)

// sftpClient implements Client over SSH File Transfer Protocol, using
// password auth by default and falling back to parsing cfg.Secret as a
// PEM private key when password auth is rejected.
type sftpClient struct {
	cfg *entity.FTPConfig
}

func newSFTPClient(cfg *entity.FTPConfig) *sftpClient {
	return &sftpClient{cfg: cfg}
}

func (c *sftpClient) authMethods() []ssh.AuthMethod {
	methods := []ssh.AuthMethod{ssh.Password(c.cfg.Secret)}
	if signer, err := ssh.ParsePrivateKey([]byte(c.cfg.Secret)); err == nil {
		methods = append(methods, ssh.PublicKeys(signer))
	}
	return methods
}

func (c *sftpClient) dial(ctx context.Context) (*sftp.Client, *ssh.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.cfg.Host, c.cfg.Port)

	sshCfg := &ssh.ClientConfig{
		User:            c.cfg.User,
		Auth:            c.authMethods(),
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // remote feed host keys are not pinned per spec
		Timeout:         30 * time.Second,
	}

	dialer := net.Dialer{Timeout: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, entity.NewFeedError(entity.FeedErrorUnreachable, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshCfg)
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, nil, entity.NewFeedError(entity.FeedErrorAuth, err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close() //nolint:errcheck
		return nil, nil, entity.NewFeedError(entity.FeedErrorUnreachable, err)
	}

	return client, sshClient, nil
}

func (c *sftpClient) Test(ctx context.Context) error {
	client, sshClient, err := c.dial(ctx)
	if err != nil {
		return err
	}
	defer client.Close()      //nolint:errcheck
	defer sshClient.Close()   //nolint:errcheck

	if c.cfg.RemotePath != "" {
		if _, err := client.ReadDir(c.cfg.RemotePath); err != nil {
			return entity.NewFeedError(entity.FeedErrorNotFound, err)
		}
	}
	return nil
}

func (c *sftpClient) List(ctx context.Context) ([]FileRef, error) {
	client, sshClient, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()    //nolint:errcheck
	defer sshClient.Close() //nolint:errcheck

	dir := c.cfg.RemotePath
	if dir == "" {
		dir = "."
	}

	infos, err := client.ReadDir(dir)
	if err != nil {
		return nil, entity.NewFeedError(entity.FeedErrorNotFound, err)
	}

	var refs []FileRef
	for _, info := range infos {
		if info.IsDir() {
			continue
		}
		if !matchesPattern(info.Name(), c.cfg.FilePattern) {
			continue
		}
		refs = append(refs, FileRef{Name: path.Join(dir, info.Name()), Size: info.Size()})
	}
	if len(refs) == 0 {
		return nil, entity.NewFeedError(entity.FeedErrorNotFound, errPatternMismatch)
	}
	return refs, nil
}

// DownloadToScratch opens an isolated SSH connection, streams ref into
// a uniquely named file under scratchDir, and closes both ends.
func (c *sftpClient) DownloadToScratch(ctx context.Context, ref FileRef, scratchDir string) (string, error) {
	client, sshClient, err := c.dial(ctx)
	if err != nil {
		return "", err
	}
	defer client.Close()    //nolint:errcheck
	defer sshClient.Close() //nolint:errcheck

	f, err := client.Open(ref.Name)
	if err != nil {
		return "", entity.NewFeedError(entity.FeedErrorUnreachable, err)
	}
	defer f.Close() //nolint:errcheck

	scratchPath := filepath.Join(scratchDir, uuid.NewString()+"_"+filepath.Base(ref.Name))
	out, err := os.Create(scratchPath)
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, f); err != nil {
		os.Remove(scratchPath) //nolint:errcheck
		return "", entity.NewFeedError(entity.FeedErrorUnreachable, err)
	}

	return scratchPath, nil
}
