package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jlaffaye/ftp"

	"github.com/glorpus-work/portalfetch/internal/logger"
	"github.com/glorpus-work/portalfetch/pkg/errors"
)

// Pool holds the reusable connections shared by all entries of one batch run:
// one FTP control connection per host and one S3 client. Connections are
// created lazily on first use and torn down when the batch finishes. The pool
// is owned by the orchestrator and injected into the transports that need it.
type Pool struct {
	mu sync.Mutex

	ftpUser  string
	ftpConns map[string]*ftp.ServerConn

	s3Region   string
	s3Endpoint string
	s3Client   *s3.Client

	dialTimeout time.Duration
}

// PoolOptions configure a connection pool.
type PoolOptions struct {
	// FTPUser is the login presented to FTP servers. Empty selects the
	// historical portal_client login.
	FTPUser string

	// S3Region is the region for the anonymous S3 client. Empty selects
	// us-east-1.
	S3Region string

	// S3Endpoint overrides the S3 endpoint (used by tests against a local
	// stand-in). Forces path-style addressing when set.
	S3Endpoint string

	// DialTimeout bounds connection establishment.
	DialTimeout time.Duration
}

// NewPool creates an empty connection pool.
func NewPool(opts PoolOptions) *Pool {
	if opts.FTPUser == "" {
		opts.FTPUser = "portal_client"
	}
	if opts.S3Region == "" {
		opts.S3Region = "us-east-1"
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 30 * time.Second
	}
	return &Pool{
		ftpUser:     opts.FTPUser,
		ftpConns:    make(map[string]*ftp.ServerConn),
		s3Region:    opts.S3Region,
		s3Endpoint:  opts.S3Endpoint,
		dialTimeout: opts.DialTimeout,
	}
}

// FTP returns the cached control connection for host, dialing and logging in
// on first use. Host may carry an explicit port; port 21 is the default.
func (p *Pool) FTP(ctx context.Context, host string) (*ftp.ServerConn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.ftpConns[host]; ok {
		return conn, nil
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, "21")
	}

	logger.Debug("dialing FTP server", logger.Fields{"host": addr, "user": p.ftpUser})

	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(p.dialTimeout))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to FTP host %s", host)
	}
	if err := conn.Login(p.ftpUser, "anonymous"); err != nil {
		_ = conn.Quit()
		return nil, errors.Wrapf(err, "FTP login failed on %s", host)
	}

	p.ftpConns[host] = conn
	return conn, nil
}

// S3 returns the shared anonymous S3 client, building it on first use.
func (p *Pool) S3(ctx context.Context) (*s3.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.s3Client != nil {
		return p.s3Client, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(p.s3Region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load S3 configuration")
	}

	p.s3Client = s3.NewFromConfig(cfg, func(o *s3.Options) {
		if p.s3Endpoint != "" {
			o.BaseEndpoint = aws.String(p.s3Endpoint)
			o.UsePathStyle = true
		}
	})
	return p.s3Client, nil
}

// Close tears down every pooled connection. Safe to call multiple times.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for host, conn := range p.ftpConns {
		if err := conn.Quit(); err != nil {
			logger.Debug("FTP quit failed", logger.Fields{"host": host, "error": err.Error()})
		}
		delete(p.ftpConns, host)
	}
	p.s3Client = nil
}
