package whatsapp

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

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
)

const (
	testPhone = "+256700111222"
	testPIN   = "1234"
)

// fakeClient records outbound messages instead of calling the Business API.
type fakeClient struct {
	texts []string
	menus int
}

func (f *fakeClient) SendText(_ context.Context, _, body string) error {
	f.texts = append(f.texts, body)
	return nil
}

func (f *fakeClient) SendMenu(_ context.Context, _, _ string, _ []MenuOption) error {
	f.menus++
	return nil
}

func (f *fakeClient) lastText() string {
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fixture struct {
	engine  *Engine
	client  *fakeClient
	store   *session.RepoStore
	log     *querylog.Log
	catalog *records.Catalog
	officer *directory.Officer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := directory.NewRegistry(memory.NewRepository())
	officer, err := reg.Enroll(directory.EnrollParams{
		Badge: "UPF-1024", FullName: "J. Okello", Phone: testPhone, PIN: testPIN,
	})
	require.NoError(t, err)

	catalog := records.NewCatalog(memory.NewRepository())
	require.NoError(t, catalog.AddPerson(records.Person{NIN: "W7RGGVGI", FullName: "K. Mugisha"}))
	require.NoError(t, catalog.AddWanted(records.WantedRecord{
		NIN: "W7RGGVGI", DangerLevel: "high", WarrantNo: "W-17", Active: true,
	}))

	log := querylog.NewLog(memory.NewRepository())
	d := dispatch.New(dispatch.Deps{
		Persons: catalog, Wanted: catalog, Cases: catalog, Vehicles: catalog,
		Stats: log, Log: log, Logger: logger,
	})
	store := session.NewRepoStore(memory.NewRepository(), DefaultMaxLifetime)
	t.Cleanup(store.Close)

	client := &fakeClient{}
	engine := NewEngine(EngineDeps{
		Store: store, Auth: auth.New(reg, logger), Limiter: ratelimit.New(log, 0, 0),
		Dispatcher: d, Client: client, Logger: logger,
	})
	return &fixture{engine: engine, client: client, store: store, log: log, catalog: catalog, officer: officer}
}

func (f *fixture) send(t *testing.T, input string) {
	t.Helper()
	require.NoError(t, f.engine.Handle(context.Background(), testPhone, input))
}

func (f *fixture) sessionState(t *testing.T) session.State {
	t.Helper()
	s, ok := f.store.Get(directory.NormalizePhone(testPhone))
	require.True(t, ok)
	return s.State
}

func TestFirstMessageOpensMenu(t *testing.T) {
	f := newFixture(t)

	f.send(t, "hi")
	assert.Equal(t, 1, f.client.menus)
	assert.Equal(t, session.StateMainMenu, f.sessionState(t))
}

func TestHappyPathWantedQuery(t *testing.T) {
	f := newFixture(t)

	f.send(t, "hi")
	f.send(t, "1")
	assert.Contains(t, f.client.lastText(), "National ID")
	assert.Equal(t, session.StateAwaitingSearch, f.sessionState(t))

	f.send(t, "W7RGGVGI")
	assert.Contains(t, f.client.lastText(), "Quick PIN")
	assert.Equal(t, session.StateAwaitingPIN, f.sessionState(t))

	f.send(t, testPIN)
	assert.Contains(t, f.client.lastText(), "WANTED")
	assert.Contains(t, f.client.lastText(), "K. Mugisha")
	assert.Equal(t, session.StateResultSent, f.sessionState(t))

	entries, err := f.log.OfficerEntries(f.officer.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, session.ChannelWhatsApp, entries[0].Channel)
	assert.Equal(t, dispatch.SummaryWanted, entries[0].ResultSummary)
}

func TestStatsSkipsSearchStep(t *testing.T) {
	f := newFixture(t)

	f.send(t, "hi")
	f.send(t, "5")
	assert.Equal(t, session.StateAwaitingPIN, f.sessionState(t), "stats goes straight to PIN")

	f.send(t, testPIN)
	assert.Contains(t, f.client.lastText(), "Today:")
}

func TestCancelReturnsToMenu(t *testing.T) {
	f := newFixture(t)

	f.send(t, "hi")
	f.send(t, "2")
	f.send(t, "0")
	assert.Equal(t, session.StateMainMenu, f.sessionState(t))
	assert.Equal(t, 2, f.client.menus)
}

func TestThreeWrongPINsResetSession(t *testing.T) {
	f := newFixture(t)

	f.send(t, "hi")
	f.send(t, "1")
	f.send(t, "W7RGGVGI")

	f.send(t, "1111")
	assert.Contains(t, f.client.lastText(), "2 attempts remaining")
	f.send(t, "2222")
	assert.Contains(t, f.client.lastText(), "1 attempt remaining")

	f.send(t, "3333")
	assert.Equal(t, session.StateMainMenu, f.sessionState(t))
	joined := strings.Join(f.client.texts, "\n")
	assert.Contains(t, joined, "Too many failed attempts")
	assert.NotContains(t, f.client.lastText(), "attempts remaining",
		"the third failure gets the distinct lockout message")

	entries, err := f.log.OfficerEntries(f.officer.ID)
	require.NoError(t, err)
	assert.Empty(t, entries, "no query ran, so nothing is logged")
}

func TestResultSentRestartsOnAnyMessage(t *testing.T) {
	f := newFixture(t)

	f.send(t, "hi")
	f.send(t, "1")
	f.send(t, "W7RGGVGI")
	f.send(t, testPIN)
	require.Equal(t, session.StateResultSent, f.sessionState(t))

	f.send(t, "anything at all")
	assert.Equal(t, session.StateMainMenu, f.sessionState(t))
	assert.Equal(t, 2, f.client.menus)
}

func TestStaleDeliveryCannotSkipAuthentication(t *testing.T) {
	f := newFixture(t)
	f.send(t, "hi")

	id := directory.NormalizePhone(testPhone)
	s, ok := f.store.Get(id)
	require.True(t, ok)
	s.State = session.StateResultSent
	err := f.store.Update(id, s)
	assert.ErrorIs(t, err, session.ErrInvalidTransition)
	assert.Equal(t, session.StateMainMenu, f.sessionState(t), "rejected update must not change state")
}

func TestUnknownSenderGetsEnrollmentMessage(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.engine.Handle(context.Background(), "+256700999999", "hi"))
	assert.Contains(t, f.client.lastText(), "not enrolled")
	_, ok := f.store.Get(directory.NormalizePhone("+256700999999"))
	assert.False(t, ok, "no session is created for unknown senders")
}

func TestRateLimitedQueryRefused(t *testing.T) {
	f := newFixture(t)

	// Fill today's budget directly in the log.
	for i := 0; i < directory.DefaultDailyQueryLimit; i++ {
		require.NoError(t, f.log.Append(querylog.Entry{
			OfficerID: f.officer.ID, Channel: session.ChannelUSSD,
			QueryType: session.QueryWanted, ResultSummary: "NOT_FOUND", Success: true,
		}))
	}

	f.send(t, "hi")
	f.send(t, "1")
	f.send(t, "W7RGGVGI")
	f.send(t, testPIN)

	assert.Contains(t, f.client.lastText(), "daily limit")
	assert.Equal(t, session.StateMainMenu, f.sessionState(t))

	n, err := f.log.CountSince(f.officer.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, directory.DefaultDailyQueryLimit, n,
		"the refused attempt must not be logged against the quota")
}

func TestWebhookParsesInteractiveListReply(t *testing.T) {
	f := newFixture(t)
	f.send(t, "hi") // session at MAIN_MENU

	body := `{"messages":[{"from":"` + testPhone + `","interactive":{"list_reply":{"id":"1"}}}]}`
	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.engine.Handler()(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, session.StateAwaitingSearch, f.sessionState(t))
}

func TestWebhookIgnoresStatusDeliveries(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(`{"statuses":[{}]}`))
	rec := httptest.NewRecorder()
	f.engine.Handler()(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.client.texts)
}
