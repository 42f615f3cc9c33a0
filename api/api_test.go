package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmensah/fieldcheck/auth"
	"github.com/jmensah/fieldcheck/directory"
	"github.com/jmensah/fieldcheck/dispatch"
	"github.com/jmensah/fieldcheck/querylog"
	"github.com/jmensah/fieldcheck/ratelimit"
	"github.com/jmensah/fieldcheck/records"
	"github.com/jmensah/fieldcheck/session"
	"github.com/jmensah/fieldcheck/storage/memory"
	"github.com/jmensah/fieldcheck/ussd"
	"github.com/jmensah/fieldcheck/whatsapp"
)

const adminToken = "test-admin-token"

type nullClient struct{}

func (nullClient) SendText(context.Context, string, string) error { return nil }
func (nullClient) SendMenu(context.Context, string, string, []whatsapp.MenuOption) error {
	return nil
}

func testAPI(t *testing.T) (*API, *querylog.Log) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := directory.NewRegistry(memory.NewRepository())
	catalog := records.NewCatalog(memory.NewRepository())
	log := querylog.NewLog(memory.NewRepository())
	limiter := ratelimit.New(log, 0, 0)
	authn := auth.New(reg, logger)
	d := dispatch.New(dispatch.Deps{
		Persons: catalog, Wanted: catalog, Cases: catalog, Vehicles: catalog,
		Stats: log, Log: log, Logger: logger,
	})
	router := ussd.NewRouter(authn, limiter, d, session.NewMemoryStore(), 0, logger)
	engine := whatsapp.NewEngine(whatsapp.EngineDeps{
		Store: session.NewMemoryStore(), Auth: authn, Limiter: limiter,
		Dispatcher: d, Client: nullClient{}, Logger: logger,
	})
	a := New(Deps{
		Registry: reg, Limiter: limiter, QueryLog: log,
		USSD: router, WhatsApp: engine, AdminToken: adminToken,
	}, WithLogger(logger))
	return a, log
}

func doJSON(t *testing.T, a *API, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)
	return rec
}

func enrollBody() map[string]any {
	return map[string]any{
		"badge":     "UPF-1024",
		"full_name": "J. Okello",
		"phone":     "+256700111222",
		"pin":       "1234",
	}
}

func TestHealth(t *testing.T) {
	a, _ := testAPI(t)
	rec := doJSON(t, a, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminEndpointsRequireToken(t *testing.T) {
	a, _ := testAPI(t)

	rec := doJSON(t, a, http.MethodPost, "/api/v1/officers", "", enrollBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doJSON(t, a, http.MethodPost, "/api/v1/officers", "wrong-token", enrollBody())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEnrollOfficer(t *testing.T) {
	a, _ := testAPI(t)

	rec := doJSON(t, a, http.MethodPost, "/api/v1/officers", adminToken, enrollBody())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp OfficerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.True(t, resp.Active)
	assert.Equal(t, directory.DefaultDailyQueryLimit, resp.DailyQueryLimit)
	assert.NotContains(t, rec.Body.String(), "pin_hash", "credential material must not leak")

	// Duplicate phone conflicts.
	rec = doJSON(t, a, http.MethodPost, "/api/v1/officers", adminToken, enrollBody())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestEnrollOfficerValidation(t *testing.T) {
	a, _ := testAPI(t)

	body := enrollBody()
	body["pin"] = "12ab"
	rec := doJSON(t, a, http.MethodPost, "/api/v1/officers", adminToken, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body = enrollBody()
	body["phone"] = "not-a-phone"
	rec = doJSON(t, a, http.MethodPost, "/api/v1/officers", adminToken, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOfficerQuota(t *testing.T) {
	a, log := testAPI(t)

	rec := doJSON(t, a, http.MethodPost, "/api/v1/officers", adminToken, enrollBody())
	require.Equal(t, http.StatusCreated, rec.Code)
	var officer OfficerResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &officer))

	require.NoError(t, log.Append(querylog.Entry{
		OfficerID: officer.ID, Channel: session.ChannelUSSD,
		QueryType: session.QueryWanted, ResultSummary: "WANTED", Success: true,
	}))

	rec = doJSON(t, a, http.MethodGet, "/api/v1/officers/"+officer.ID+"/quota", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var quota QuotaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &quota))
	assert.True(t, quota.Quota.Allowed)
	assert.Equal(t, directory.DefaultDailyQueryLimit-1, quota.Quota.Remaining)
	assert.Equal(t, 1, quota.Stats.Total)
}

func TestOfficerQuotaUnknownOfficer(t *testing.T) {
	a, _ := testAPI(t)
	rec := doJSON(t, a, http.MethodGet, "/api/v1/officers/nope/quota", adminToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListQueryLogPagination(t *testing.T) {
	a, log := testAPI(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, log.Append(querylog.Entry{
			OfficerID: "off-1", Channel: session.ChannelUSSD,
			QueryType: session.QueryWanted, ResultSummary: "NOT_FOUND", Success: true,
		}))
	}

	rec := doJSON(t, a, http.MethodGet, "/api/v1/querylog?limit=2&offset=0", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp QueryLogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 2)
	assert.Equal(t, 5, resp.Meta.TotalCount)
	assert.True(t, resp.Meta.HasMore)

	rec = doJSON(t, a, http.MethodGet, "/api/v1/querylog?limit=2&offset=4", adminToken, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Entries, 1)
	assert.False(t, resp.Meta.HasMore)
}

func TestListQueryLogChannelFilter(t *testing.T) {
	a, log := testAPI(t)
	require.NoError(t, log.Append(querylog.Entry{
		OfficerID: "off-1", Channel: session.ChannelUSSD,
		QueryType: session.QueryWanted, ResultSummary: "WANTED", Success: true,
	}))
	require.NoError(t, log.Append(querylog.Entry{
		OfficerID: "off-1", Channel: session.ChannelWhatsApp,
		QueryType: session.QueryVehicle, ResultSummary: "CLEAN", Success: true,
	}))

	rec := doJSON(t, a, http.MethodGet, "/api/v1/querylog?channel=whatsapp", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp QueryLogResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, session.ChannelWhatsApp, resp.Entries[0].Channel)
}

func TestUSSDRouteMounted(t *testing.T) {
	a, _ := testAPI(t)

	form := "sessionId=gw-1&phoneNumber=%2B256700111222&text="
	req := httptest.NewRequest(http.MethodPost, "/ussd", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "CON "))
}

func TestOpenAPISpecServed(t *testing.T) {
	a, _ := testAPI(t)
	rec := doJSON(t, a, http.MethodGet, "/api/v1/openapi.yaml", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "FieldCheck API")
}
