package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	singleEventDigest = "5e1d57125c257ccbac6bb3f2b71b5ecc09c325248e7250d4b652722bd6d2bc1f"
	emptyDigest       = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
)

const confirmedEvent = `{
  "identity": "assets/aaaa/events/0001",
  "asset_identity": "assets/aaaa",
  "event_attributes": {"arc_display_type": "Inspection", "count": 1},
  "asset_attributes": {},
  "operation": "Record",
  "behaviour": "RecordEvidence",
  "timestamp_declared": "2022-10-07T07:01:34Z",
  "timestamp_accepted": "2022-10-07T07:01:34Z",
  "timestamp_committed": "2022-10-07T07:01:35Z",
  "principal_accepted": {"issuer": "idp.example", "subject": "alice"},
  "principal_declared": {"issuer": "idp.example", "subject": "alice"},
  "confirmation_status": "CONFIRMED",
  "from": "0xF17B3B9a3691846CA0533Ce01Fa3E35d6d6f714C",
  "tenant_identity": "tenant/0001",
  "merklelog_entry": {"ignored": true}
}`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAnchorFromEventsFile(t *testing.T) {
	path := writeTemp(t, "events.json", "["+confirmedEvent+"]")

	out, err := execute(t, "anchor",
		"--start-time", "2022-10-07T07:00:00Z",
		"--end-time", "2022-10-07T08:00:00Z",
		"--events-file", path)
	require.NoError(t, err)
	assert.Equal(t, singleEventDigest+"\n", out)
}

func TestAnchorFromLedger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"events": [` + confirmedEvent + `]}`))
	}))
	defer srv.Close()
	tokenFile := writeTemp(t, "token", "secret-token\n")

	out, err := execute(t, "anchor",
		"--start-time", "2022-10-07T07:00:00Z",
		"--end-time", "2022-10-07T08:00:00Z",
		"--base-url", srv.URL,
		"--auth-token-file", tokenFile)
	require.NoError(t, err)
	assert.Equal(t, singleEventDigest+"\n", out)
}

func TestAnchorEmptyWindow(t *testing.T) {
	path := writeTemp(t, "events.json", `{"events": []}`)

	out, err := execute(t, "anchor",
		"--start-time", "2022-10-07T07:00:00Z",
		"--end-time", "2022-10-07T07:00:00Z",
		"--events-file", path)
	require.NoError(t, err)
	assert.Equal(t, emptyDigest+"\n", out)
}

func TestAnchorErrors(t *testing.T) {
	var pending map[string]any
	require.NoError(t, json.Unmarshal([]byte(confirmedEvent), &pending))
	pending["confirmation_status"] = "PENDING"
	pendingJSON, err := json.Marshal([]any{pending})
	require.NoError(t, err)
	pendingFile := writeTemp(t, "pending.json", string(pendingJSON))

	cases := map[string][]string{
		"missing end time": {"anchor", "--start-time", "2022-10-07T07:00:00Z"},
		"bad start time":   {"anchor", "--start-time", "yesterday", "--end-time", "2022-10-07T08:00:00Z", "--events-file", pendingFile},
		"no credentials":   {"anchor", "--start-time", "2022-10-07T07:00:00Z", "--end-time", "2022-10-07T08:00:00Z"},
		"pending event":    {"anchor", "--start-time", "2022-10-07T07:00:00Z", "--end-time", "2022-10-07T08:00:00Z", "--events-file", pendingFile},
		"inverted window":  {"anchor", "--start-time", "2022-10-07T08:00:00Z", "--end-time", "2022-10-07T07:00:00Z", "--events-file", pendingFile},
	}
	for name, args := range cases {
		t.Run(name, func(t *testing.T) {
			out, err := execute(t, args...)
			assert.Error(t, err)
			assert.Empty(t, out)
		})
	}
}

func TestAnchorCredentialsFromEnv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer env-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"events": []}`))
	}))
	defer srv.Close()
	t.Setenv("SIMPLEHASH_AUTH_TOKEN_FILE", writeTemp(t, "token", "env-token"))
	t.Setenv("SIMPLEHASH_BASE_URL", srv.URL)

	out, err := execute(t, "anchor",
		"--start-time", "2022-10-07T07:00:00Z",
		"--end-time", "2022-10-07T08:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, emptyDigest+"\n", out)
}
