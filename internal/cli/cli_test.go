package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clevertap-sync/internal/auth"
	"clevertap-sync/internal/config"
	"clevertap-sync/internal/events"
	"clevertap-sync/internal/syncer"
)

const leadSeed = `configs:
  - source_entity: Lead
    mappings:
      - {source: Email, target: customer_id, type: Text, mandatory: true}
      - {source: FirstName, target: first_name}
      - {source: AnnualRevenue, target: revenue, type: Number}
`

const leadRecords = `[
  {"id": "00Q1", "type": "Lead", "fields": {"Email": "test.lead@example.com", "FirstName": "Test", "AnnualRevenue": 1500000}},
  {"id": "003A", "type": "Contact", "fields": {"Email": "c@example.com"}}
]`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"sync", "validate", "regions", "token", "migrate"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}
}

func TestInvalidFormat(t *testing.T) {
	_, err := execute(t, "", "regions", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRegions_JSON(t *testing.T) {
	out, err := execute(t, "", "regions", "--format", "json")
	require.NoError(t, err)

	var entries []regionEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "EU", entries[0].Code)
	assert.Equal(t, "https://eu1.api.clevertap.com/1/upload", entries[0].URL)
}

func TestRegions_BadFile(t *testing.T) {
	path := writeFile(t, "regions.yaml", "regions: {}\n")
	_, err := execute(t, "", "regions", "--regions-file", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidate(t *testing.T) {
	t.Run("usable", func(t *testing.T) {
		out, err := execute(t, "", "validate", "--configs", writeFile(t, "seed.yaml", leadSeed))
		require.NoError(t, err)
		assert.Contains(t, out, "ok")
		assert.Contains(t, out, "Lead")
	})

	t.Run("no identifier", func(t *testing.T) {
		seed := "configs:\n  - source_entity: Contact\n    mappings:\n      - {source: Email, target: email}\n"
		out, err := execute(t, "", "validate", "--format", "json", "--configs", writeFile(t, "seed.yaml", seed))
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		var reports []configReport
		require.NoError(t, json.Unmarshal([]byte(out), &reports))
		require.Len(t, reports, 1)
		assert.False(t, reports[0].Usable)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := execute(t, "", "validate", "--configs", filepath.Join(t.TempDir(), "nope.yaml"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestSync_DryRunFromStdin(t *testing.T) {
	out, err := execute(t, leadRecords, "sync", "--dry-run", "--format", "json",
		"--configs", writeFile(t, "seed.yaml", leadSeed), "--records", "-")
	require.NoError(t, err)

	var entries []dryRunEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0].Payload, `"identity":"test.lead@example.com"`)
	assert.Contains(t, entries[0].Payload, `"revenue":1500000`)
	assert.Equal(t, "no active configuration", entries[1].Skipped)
}

func TestSync_DryRunSkipsUntypedRecords(t *testing.T) {
	recs := `[
  {"id": "X1", "type": "", "fields": {"Email": "a@example.com"}},
  {"id": "X2", "fields": {"Email": "b@example.com"}},
  {"id": "00Q1", "type": "Lead", "fields": {"Email": "test.lead@example.com"}}
]`
	out, err := execute(t, recs, "sync", "--dry-run", "--format", "json",
		"--configs", writeFile(t, "seed.yaml", leadSeed), "--records", "-")
	require.NoError(t, err)

	var entries []dryRunEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "record has no entity type", entries[0].Skipped)
	assert.Equal(t, "record has no entity type", entries[1].Skipped)
	assert.Contains(t, entries[2].Payload, `"identity":"test.lead@example.com"`)
}

func TestSync_DryRunBuildFailure(t *testing.T) {
	recs := `[{"id": "00Q2", "type": "Lead", "fields": {"FirstName": "NoEmail"}}]`
	_, err := execute(t, "", "sync", "--dry-run",
		"--configs", writeFile(t, "seed.yaml", leadSeed), "--records", writeFile(t, "recs.json", recs))
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestSync_Dispatches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "A", r.Header.Get("X-CleverTap-Account-Id"))
		assert.Equal(t, "p", r.Header.Get("X-CleverTap-Passcode"))
		body, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(body), `"identity":"test.lead@example.com"`)
		_, _ = w.Write([]byte(`{"status":"success","processed":1}`))
	}))
	defer srv.Close()

	regions := writeFile(t, "regions.yaml", "regions:\n  TEST: "+srv.URL+"\n")
	out, err := execute(t, "", "sync", "--format", "json", "-v",
		"--regions-file", regions, "--region", "test", "--account", "A", "--passcode", "p",
		"--configs", writeFile(t, "seed.yaml", leadSeed), "--records", writeFile(t, "recs.json", leadRecords))
	require.NoError(t, err)
	assert.Equal(t, int32(1), hits.Load())

	var rep struct {
		syncer.BatchResult
		Events []struct {
			Status        string `json:"status"`
			ResponseTrace string `json:"response_trace"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 1, rep.Succeeded)
	assert.Equal(t, 1, rep.Skipped)
	require.Len(t, rep.Events, 1)
	assert.Equal(t, "Success", rep.Events[0].Status)
	assert.True(t, strings.HasPrefix(rep.Events[0].ResponseTrace, "Response (200):"))
}

func TestSync_NoConnectionHalts(t *testing.T) {
	out, err := execute(t, "", "sync",
		"--configs", writeFile(t, "seed.yaml", leadSeed), "--records", writeFile(t, "recs.json", leadRecords))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "halted")
}

func TestToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "cli-secret")
	t.Setenv("JWT_ISSUER", "")
	t.Setenv("JWT_AUDIENCE", "")

	out, err := execute(t, "", "token", "--subject", "svc-crm", "--role", "auditor")
	require.NoError(t, err)

	mgr, err := auth.NewManager(config.AuthConfig{JWTSecret: "cli-secret"})
	require.NoError(t, err)
	claims, err := mgr.Verify(strings.TrimSpace(out), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "svc-crm", claims.Subject)
	assert.Equal(t, "auditor", claims.Role)

	_, err = execute(t, "", "token", "--subject", "svc-crm", "--role", "root")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMigrate_RequiresDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	_, err := execute(t, "", "migrate")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
	assert.Equal(t, ExitCommandError, GetExitCode(WrapExitError(ExitCommandError, "x", assert.AnError)))
}

func TestSync_RequiresConfigsWithoutDSN(t *testing.T) {
	_, err := execute(t, "", "sync", "--records", writeFile(t, "recs.json", leadRecords))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "--configs")
}

func TestStores_RecentIsOldestFirst(t *testing.T) {
	st, err := openStores(context.Background(), "", nil, 1)
	require.NoError(t, err)
	defer st.close()

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.events.Append(context.Background(), events.SyncEvent{
			ID: id, RecordID: id, RecordType: "Lead", Status: events.StatusSuccess,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got := st.recent(context.Background(), 2)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)
	assert.Nil(t, st.recent(context.Background(), 0))
}
