package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lookupcache/internal/testutil"
)

const serversConfig = `
jdbc_connection_string: %q
lookup_connection_string: %q
local_db_objects:
  - {type: table, name: servers, columns: [[ip, text], [name, text]]}
  - {type: index, name: servers_ip, table: servers, columns: [ip]}
loaders:
  - {id: servers_load, local_table: servers, query: "select ip, name from reference"}
lookups:
  - id: server
    query: "select name from servers where ip = :ip"
    parameters: {ip: "[ip]"}
    default_hash: {name: unknown}
`

// serversFixture writes a reference database holding three servers and a
// configuration that loads it into localDSN.
func serversFixture(t *testing.T, localDSN string) string {
	t.Helper()
	ref := testutil.NewReferenceDB(t)
	ref.SetServers(t, testutil.Servers(
		"10.0.0.1", "alpha",
		"10.0.0.2", "beta",
		"10.0.0.3", "gamma",
	)...)
	return writeConfig(t, fmt.Sprintf(serversConfig, ref.DSN, localDSN))
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "lookupcache.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns stdout and stderr.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	if args == nil {
		args = []string{} // nil makes cobra fall back to os.Args
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Len()
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
