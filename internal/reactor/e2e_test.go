package reactor

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/helouazizi/localserver/internal/config"
	"github.com/helouazizi/localserver/internal/metrics"
)

func testdataAbs(t *testing.T, rel string) string {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Join(wd, "..", "..", "testdata", rel)
}

// startTestReactor binds a reactor on 127.0.0.1:0 with the given config and
// returns its address; stopping the reactor is registered with t.Cleanup.
func startTestReactor(t *testing.T, cfg *config.Config) string {
	t.Helper()
	log := zap.NewNop()

	re, err := New(cfg, log, metrics.New())
	require.NoError(t, err)
	require.NoError(t, re.Bind())
	addrs := re.ListenerAddrs()
	require.Len(t, addrs, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		re.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})

	return addrs[0]
}

func rawRequest(t *testing.T, addr, request string) string {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(request))
	require.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err != nil {
			break
		}
	}
	return buf.String()
}

func baseTestConfig(t *testing.T, timeoutSeconds int64, maxServerSize int64) *config.Config {
	uploadRoot := t.TempDir()
	return &config.Config{
		MaxServerSize:  maxServerSize,
		TimeoutSeconds: timeoutSeconds,
		Servers: []config.ServerConfig{
			{
				Host:        "127.0.0.1",
				Port:        "0",
				ServerName:  "localhost",
				MaxBodySize: maxServerSize,
				Routes: []config.RouteConfig{
					{Path: "/upload", Root: uploadRoot, UploadDir: filepath.Join(uploadRoot, "uploads"), Methods: []string{"POST"}},
					{Path: "/cgi-bin", Root: testdataAbs(t, "cgi"), CGIExtension: ".sh", CGIInterpreter: "/bin/sh", Methods: []string{"GET", "POST"}},
					{Path: "/", Root: testdataAbs(t, "www")},
				},
			},
		},
	}
}

func TestE2EStaticFileServedWith200(t *testing.T) {
	cfg := baseTestConfig(t, 10, 1<<20)
	addr := startTestReactor(t, cfg)

	resp := rawRequest(t, addr, "GET /hello.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n"))
	require.True(t, strings.HasSuffix(resp, "hi\n"))
}

func TestE2EMissingFileIs404(t *testing.T) {
	cfg := baseTestConfig(t, 10, 1<<20)
	addr := startTestReactor(t, cfg)

	resp := rawRequest(t, addr, "GET /nope.txt HTTP/1.1\r\nHost: x\r\n\r\n")
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 404 Not Found\r\n"))
}

func TestE2EMethodNotAllowedIs405(t *testing.T) {
	cfg := baseTestConfig(t, 10, 1<<20)
	addr := startTestReactor(t, cfg)

	resp := rawRequest(t, addr, "DELETE /upload HTTP/1.1\r\nHost: x\r\nContent-Length: 0\r\n\r\n")
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 405 Method Not Allowed\r\n"))
}

func TestE2EMultipartUploadIsSaved(t *testing.T) {
	cfg := baseTestConfig(t, 10, 1<<20)
	addr := startTestReactor(t, cfg)

	boundary := "XBOUND"
	body := "--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"note.txt\"\r\n\r\n" +
		"hello from test\r\n" +
		"--" + boundary + "--\r\n"
	req := "POST /upload HTTP/1.1\r\nHost: x\r\n" +
		"Content-Type: multipart/form-data; boundary=" + boundary + "\r\n" +
		"Content-Length: " + itoa(len(body)) + "\r\n\r\n" + body

	resp := rawRequest(t, addr, req)
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 201 Created\r\n"))

	saved, err := os.ReadFile(filepath.Join(cfg.Servers[0].Routes[0].UploadDir, "note.txt"))
	require.NoError(t, err)
	require.Equal(t, "hello from test", string(saved))
}

func TestE2EPayloadTooLargeIs413(t *testing.T) {
	cfg := baseTestConfig(t, 10, 16)
	addr := startTestReactor(t, cfg)

	body := strings.Repeat("a", 64)
	req := "POST /upload HTTP/1.1\r\nHost: x\r\nContent-Length: " + itoa(len(body)) + "\r\n\r\n" + body

	resp := rawRequest(t, addr, req)
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 413 Payload Too Large\r\n"))
}

func TestE2EChunkedBodyReachesCGIScript(t *testing.T) {
	cfg := baseTestConfig(t, 10, 1<<20)
	addr := startTestReactor(t, cfg)

	req := "POST /cgi-bin/echo.sh HTTP/1.1\r\nHost: x\r\nTransfer-Encoding: chunked\r\n\r\n" +
		"5\r\nhello\r\n0\r\n\r\n"

	resp := rawRequest(t, addr, req)
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 200 OK\r\n"))
	require.Contains(t, resp, "cgi-said:hello")
}

func TestE2ECGITimeout(t *testing.T) {
	cfg := baseTestConfig(t, 1, 1<<20)
	addr := startTestReactor(t, cfg)

	resp := rawRequest(t, addr, "GET /cgi-bin/slow.sh HTTP/1.1\r\nHost: x\r\n\r\n")
	require.True(t, strings.HasPrefix(resp, "HTTP/1.1 504 Gateway Timeout\r\n"))
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
