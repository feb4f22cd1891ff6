package cgi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildResponsePassesThroughNPHOutput(t *testing.T) {
	raw := []byte("HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi")
	require.Equal(t, raw, BuildResponse(raw))
}

func TestBuildResponseDefaultsTo200WithoutStatusHeader(t *testing.T) {
	out := BuildResponse([]byte("Content-Type: text/plain\r\n\r\nhello"))
	require.True(t, strings.HasPrefix(string(out), "HTTP/1.1 200 OK\r\n"))
	require.True(t, strings.Contains(string(out), "hello"))
}

func TestBuildResponseTranslatesStatusHeader(t *testing.T) {
	out := BuildResponse([]byte("Status: 404 Not Found\r\nContent-Type: text/plain\r\n\r\nmissing"))
	require.True(t, strings.HasPrefix(string(out), "HTTP/1.1 404 Not Found\r\n"))
	require.False(t, strings.Contains(string(out), "Status:"))
}

func TestBuildResponseAddsDefaultContentType(t *testing.T) {
	out := BuildResponse([]byte("\r\nplain body"))
	require.True(t, strings.Contains(string(out), "Content-Type: text/plain\r\n"))
}

func TestBuildResponseAcceptsBareLFHeaderBlock(t *testing.T) {
	out := BuildResponse([]byte("Content-Type: text/plain\n\nbody-here"))
	require.True(t, strings.Contains(string(out), "body-here"))
}

func TestBuildEnvIncludesCoreVariablesAndForwardsHeaders(t *testing.T) {
	env := BuildEnv(EnvRequest{
		Method:      "GET",
		ScriptPath:  "/srv/cgi-bin/hello.sh",
		QueryString: "a=1",
		BodyLen:     0,
		Headers:     map[string]string{"x-request-id": "abc", "content-type": "text/plain"},
	})

	joined := strings.Join(env, "\n")
	require.Contains(t, joined, "GATEWAY_INTERFACE=CGI/1.1")
	require.Contains(t, joined, "REQUEST_METHOD=GET")
	require.Contains(t, joined, "SCRIPT_FILENAME=/srv/cgi-bin/hello.sh")
	require.Contains(t, joined, "QUERY_STRING=a=1")
	require.Contains(t, joined, "CONTENT_LENGTH=0")
	require.Contains(t, joined, "HTTP_X_REQUEST_ID=abc")
	require.NotContains(t, joined, "HTTP_CONTENT_TYPE")
}
