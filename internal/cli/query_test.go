package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lookupcache/internal/store"
	"github.com/roach88/lookupcache/internal/testutil"
)

func TestQueryBindsArguments(t *testing.T) {
	path := serversFixture(t, testutil.MemoryDSN(t))

	out, _, err := execute(NewQueryCommand(&RootOptions{Format: "text", Config: path}),
		"select name from servers where ip = ?", "10.0.0.2")
	require.NoError(t, err)
	assert.Equal(t, "{\"name\":\"beta\"}\n", out)
}

func TestQueryJSON(t *testing.T) {
	path := serversFixture(t, testutil.MemoryDSN(t))

	out, _, err := execute(NewQueryCommand(&RootOptions{Format: "json", Config: path}),
		"select ip, name from servers order by ip desc")
	require.NoError(t, err)

	var resp struct {
		Status string      `json:"status"`
		Data   QueryResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 3, resp.Data.Count)
	assert.Equal(t, store.Row{"ip": "10.0.0.3", "name": "gamma"}, resp.Data.Rows[0])
}

func TestQueryNoLoadReadsExistingStore(t *testing.T) {
	local := filepath.Join(t.TempDir(), "local.db")
	path := serversFixture(t, local)

	_, _, err := execute(NewLoadCommand(&RootOptions{Format: "text", Config: path}))
	require.NoError(t, err)

	out, _, err := execute(NewQueryCommand(&RootOptions{Format: "text", Config: path}),
		"--no-load", "select count(*) as n from servers")
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":3}\n", out)
}

func TestQueryFailure(t *testing.T) {
	path := serversFixture(t, testutil.MemoryDSN(t))

	out, _, err := execute(NewQueryCommand(&RootOptions{Format: "text", Config: path}),
		"select * from nowhere")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [E022]: query failed")
}

func TestQueryRequiresStatement(t *testing.T) {
	_, _, err := execute(NewQueryCommand(&RootOptions{Format: "text"}))
	assert.Error(t, err)
}
