package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"ironnas/backend/irond/internal/config"
	"ironnas/backend/irond/internal/operations"
	"ironnas/backend/irond/internal/pools"
	"ironnas/backend/irond/internal/poolsvc"
)

const testGUID = "3f2504e0-4f89-41d3-9a0c-0305e82c3301"

type testEnv struct {
	handler http.Handler
	store   *pools.Store
	manager *operations.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Defaults()
	cfg.LogLevel = zerolog.Disabled

	store := pools.NewStore(t.TempDir())
	info := pools.NewInfoService(zerolog.Nop(), store)
	manager := operations.NewManager(zerolog.Nop(), store, operations.Options{
		SettleDelay: time.Millisecond,
		Runner:      func(ctx context.Context, name string, args ...string) (int, string) { return 0, "" },
	})
	svc := poolsvc.New(zerolog.Nop(), store, info, manager)

	return &testEnv{
		handler: NewRouter(cfg, svc),
		store:   store,
		manager: manager,
	}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func seedPool(t *testing.T, store *pools.Store) {
	t.Helper()
	err := store.Update(pools.Metadata{
		GUID:      testGUID,
		Label:     "tank",
		MountPath: "/srv/pools/tank",
		RaidLevel: "raid1",
		Drives: []pools.DriveRef{
			{Serial: "S1", DevicePath: "/dev/disk/by-id/ata-DISK1"},
			{Serial: "S2", DevicePath: "/dev/disk/by-id/ata-DISK2"},
		},
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["ok"] != true {
		t.Fatalf("body = %v", body)
	}
}

func TestMetricsExposed(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListPoolsEmpty(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/pools", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		Pools []pools.Pool `json:"pools"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Pools) != 0 {
		t.Fatalf("pools = %+v", body.Pools)
	}
}

func TestGetPool(t *testing.T) {
	env := newTestEnv(t)
	seedPool(t, env.store)

	rec := env.do(t, http.MethodGet, "/api/v1/pools/"+testGUID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var p pools.Pool
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatal(err)
	}
	if p.Label != "tank" || p.RaidLevel != "raid1" {
		t.Fatalf("pool = %+v", p)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/pools/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown pool status = %d", rec.Code)
	}
}

func TestCreatePoolSchemaValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"missing fields", `{"label":"tank"}`},
		{"bad raid level", `{"label":"tank","raid_level":"raid7","drives":["S1","S2"]}`},
		{"one drive", `{"label":"tank","raid_level":"raid1","drives":["S1"]}`},
		{"duplicate drives", `{"label":"tank","raid_level":"raid1","drives":["S1","S1"]}`},
		{"bad label", `{"label":"-tank!","raid_level":"raid1","drives":["S1","S2"]}`},
		{"relative mount", `{"label":"tank","raid_level":"raid1","drives":["S1","S2"],"mount_path":"srv/tank"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/pools", tc.body)
			if rec.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
			}
		})
	}

	// field-level failures carry per-field details
	rec := env.do(t, http.MethodPost, "/api/v1/pools", `{"label":"tank"}`)
	var resp struct {
		Error struct {
			Code    string `json:"code"`
			Details struct {
				Fields []string `json:"fields"`
			} `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error.Code != "pool.invalid_request" || len(resp.Error.Details.Fields) == 0 {
		t.Fatalf("error payload = %s", rec.Body.String())
	}
}

func TestCreatePoolLabelTaken(t *testing.T) {
	env := newTestEnv(t)
	seedPool(t, env.store)
	rec := env.do(t, http.MethodPost, "/api/v1/pools",
		`{"label":"tank","raid_level":"raid1","drives":["S1","S2"]}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestRemovePoolConfirmGate(t *testing.T) {
	env := newTestEnv(t)
	seedPool(t, env.store)

	rec := env.do(t, http.MethodDelete, "/api/v1/pools/"+testGUID, `{}`)
	if rec.Code != http.StatusPreconditionRequired {
		t.Fatalf("missing confirm status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/pools/missing", `{"confirm":"REMOVE"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown pool status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/pools/"+testGUID, `{"confirm":"REMOVE"}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("remove status = %d body=%s", rec.Code, rec.Body.String())
	}
	var op operations.Operation
	if err := json.Unmarshal(rec.Body.Bytes(), &op); err != nil {
		t.Fatal(err)
	}
	if op.Kind != operations.KindRemovePool || op.ID == "" {
		t.Fatalf("operation = %+v", op)
	}
}

func TestOperationEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/operations/nope", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown op status = %d", rec.Code)
	}

	op := env.manager.Register(testGUID, operations.KindCreatePool, "create pool", true)

	rec = env.do(t, http.MethodGet, "/api/v1/operations/"+op.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get op status = %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/operations", "")
	var body struct {
		Operations []operations.Operation `json:"operations"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Operations) != 1 || body.Operations[0].ID != op.ID {
		t.Fatalf("operations = %+v", body.Operations)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/pools/"+testGUID+"/operations", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Operations) != 1 {
		t.Fatalf("pool operations = %+v", body.Operations)
	}

	rec = env.do(t, http.MethodPost, "/api/v1/operations/"+op.ID+"/cancel", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("cancel status = %d body=%s", rec.Code, rec.Body.String())
	}
	var got operations.Operation
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.Status != operations.StatusCancelled {
		t.Fatalf("status after cancel = %s", got.Status)
	}

	// second cancel is rejected
	rec = env.do(t, http.MethodPost, "/api/v1/operations/"+op.ID+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("double cancel status = %d", rec.Code)
	}
}

func TestCancelNotCancellable(t *testing.T) {
	env := newTestEnv(t)
	op := env.manager.Register(testGUID, operations.KindUnmountPool, "unmount", false)
	rec := env.do(t, http.MethodPost, "/api/v1/operations/"+op.ID+"/cancel", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestForgetPool(t *testing.T) {
	env := newTestEnv(t)
	seedPool(t, env.store)

	rec := env.do(t, http.MethodDelete, "/api/v1/pools/"+testGUID+"/metadata", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/v1/pools/"+testGUID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status after forget = %d", rec.Code)
	}
}
