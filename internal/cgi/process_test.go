package cgi

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpawnAndDrainCollectsStdout(t *testing.T) {
	script := writeShellScript(t, "#!/bin/sh\nread body\necho \"Content-Type: text/plain\"\necho\necho -n \"got:$body\"\n")

	p, err := Spawn(script, "/bin/sh", []byte("hello\n"), os.Environ())
	require.NoError(t, err)
	defer p.Close()

	var eof bool
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		eof, err = p.Drain()
		require.NoError(t, err)
		if exited, _ := p.TryWait(); exited {
			eof, err = p.Drain()
			require.NoError(t, err)
			break
		}
		if eof {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	require.Contains(t, string(p.Output), "got:hello")
}

func TestKillStopsALongRunningScript(t *testing.T) {
	script := writeShellScript(t, "#!/bin/sh\nsleep 30\n")

	p, err := Spawn(script, "/bin/sh", nil, os.Environ())
	require.NoError(t, err)
	defer p.Close()

	exited, _ := p.TryWait()
	require.False(t, exited)

	p.Kill()
	exited, _ = p.TryWait()
	require.True(t, exited)
}

func writeShellScript(t *testing.T, contents string) string {
	t.Helper()
	path := t.TempDir() + "/script.sh"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o755))
	return path
}
