package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFTPServer speaks just enough of the protocol for the client library:
// login, binary mode, SIZE, extended passive mode and RETR with REST-based
// resume. Every control command is recorded for assertions.
type fakeFTPServer struct {
	listener net.Listener
	addr     string
	files    map[string][]byte

	mu          sync.Mutex
	rejectLogin bool
	commands    []string
	dials       int
}

func (s *fakeFTPServer) setRejectLogin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectLogin = true
}

func startFakeFTPServer(t *testing.T, files map[string][]byte) *fakeFTPServer {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &fakeFTPServer{
		listener: listener,
		addr:     listener.Addr().String(),
		files:    files,
	}
	go s.serve()
	t.Cleanup(func() { _ = listener.Close() })
	return s
}

func (s *fakeFTPServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		s.mu.Lock()
		s.dials++
		s.mu.Unlock()
		go s.handle(conn)
	}
}

func (s *fakeFTPServer) handle(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	reply := func(format string, args ...interface{}) {
		_, _ = fmt.Fprintf(conn, format+"\r\n", args...)
	}
	reply("220 ready")

	reader := bufio.NewReader(conn)
	dataConns := make(chan net.Conn, 1)
	var offset int64

	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		s.mu.Lock()
		s.commands = append(s.commands, line)
		s.mu.Unlock()

		verb, arg, _ := strings.Cut(line, " ")
		switch strings.ToUpper(verb) {
		case "FEAT":
			reply("500 unknown command")
		case "USER":
			s.mu.Lock()
			reject := s.rejectLogin
			s.mu.Unlock()
			if reject {
				reply("530 login rejected")
				continue
			}
			reply("331 password required")
		case "PASS":
			reply("230 logged in")
		case "TYPE":
			reply("200 switching to binary mode")
		case "SIZE":
			payload, ok := s.files[arg]
			if !ok {
				reply("550 no such file")
				continue
			}
			reply("213 %d", len(payload))
		case "EPSV":
			dataListener, err := net.Listen("tcp", "127.0.0.1:0")
			if err != nil {
				reply("425 cannot open data connection")
				continue
			}
			go func() {
				dc, acceptErr := dataListener.Accept()
				_ = dataListener.Close()
				if acceptErr == nil {
					dataConns <- dc
				}
			}()
			_, port, _ := net.SplitHostPort(dataListener.Addr().String())
			reply("229 Entering Extended Passive Mode (|||%s|)", port)
		case "REST":
			offset, _ = strconv.ParseInt(arg, 10, 64)
			reply("350 restarting at %d", offset)
		case "RETR":
			payload, ok := s.files[arg]
			if !ok {
				reply("550 no such file")
				continue
			}
			dc := <-dataConns
			reply("150 opening data connection")
			if offset < int64(len(payload)) {
				_, _ = dc.Write(payload[offset:])
			}
			_ = dc.Close()
			offset = 0
			reply("226 transfer complete")
		case "QUIT":
			reply("221 goodbye")
			return
		default:
			reply("500 unknown command")
		}
	}
}

func (s *fakeFTPServer) saw(command string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.commands {
		if c == command {
			return true
		}
	}
	return false
}

func (s *fakeFTPServer) controlDials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func TestFTPTransport(t *testing.T) {
	payload := []byte("0123456789abcdef")
	srv := startFakeFTPServer(t, map[string][]byte{"/pub/x.bin": payload})

	pool := NewPool(PoolOptions{})
	t.Cleanup(pool.Close)
	tr := NewFTP(pool)

	rawURL := "ftp://" + srv.addr + "/pub/x.bin"

	size, err := tr.Size(context.Background(), rawURL)
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), size)

	h, err := tr.Open(context.Background(), rawURL, 10)
	require.NoError(t, err)
	got, err := io.ReadAll(h)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.Equal(t, "abcdef", string(got))

	assert.True(t, srv.saw("REST 10"), "resume offset must reach the server")
	assert.True(t, srv.saw("USER portal_client"), "default login must be presented")
	assert.Equal(t, 1, srv.controlDials(), "size and open must share one control connection")
}

func TestFTPTransportFromStart(t *testing.T) {
	payload := []byte("whole file over ftp")
	srv := startFakeFTPServer(t, map[string][]byte{"/x.bin": payload})

	pool := NewPool(PoolOptions{FTPUser: "someone"})
	t.Cleanup(pool.Close)
	tr := NewFTP(pool)

	h, err := tr.Open(context.Background(), "ftp://"+srv.addr+"/x.bin", 0)
	require.NoError(t, err)
	got, err := io.ReadAll(h)
	require.NoError(t, err)
	require.NoError(t, h.Close())
	assert.Equal(t, payload, got)

	assert.True(t, srv.saw("USER someone"))
	assert.False(t, srv.saw("REST 0"), "no REST without an offset")
}

func TestFTPTransportMissingFile(t *testing.T) {
	srv := startFakeFTPServer(t, map[string][]byte{})

	pool := NewPool(PoolOptions{})
	t.Cleanup(pool.Close)
	tr := NewFTP(pool)

	_, err := tr.Size(context.Background(), "ftp://"+srv.addr+"/nope.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get size")
}

func TestFTPTransportLoginRejected(t *testing.T) {
	srv := startFakeFTPServer(t, map[string][]byte{})
	srv.setRejectLogin()

	pool := NewPool(PoolOptions{})
	t.Cleanup(pool.Close)
	tr := NewFTP(pool)

	_, err := tr.Size(context.Background(), "ftp://"+srv.addr+"/x.bin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FTP login failed")
}
