package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/jmensah/fieldcheck/directory"
	"github.com/jmensah/fieldcheck/querylog"
	"github.com/jmensah/fieldcheck/ratelimit"
	"github.com/jmensah/fieldcheck/session"
)

var validate = validator.New()

// EnrollOfficerRequest is the body of POST /api/v1/officers.
type EnrollOfficerRequest struct {
	Badge           string `json:"badge" validate:"required"`
	FullName        string `json:"full_name" validate:"required"`
	Station         string `json:"station"`
	Rank            string `json:"rank"`
	Phone           string `json:"phone" validate:"required,e164"`
	PIN             string `json:"pin" validate:"required,len=4,numeric"`
	DailyQueryLimit int    `json:"daily_query_limit" validate:"gte=0"`
}

// OfficerResponse is the officer record with credential material stripped.
type OfficerResponse struct {
	ID              string    `json:"id"`
	Badge           string    `json:"badge"`
	FullName        string    `json:"full_name"`
	Station         string    `json:"station,omitempty"`
	Rank            string    `json:"rank,omitempty"`
	Phone           string    `json:"phone"`
	Active          bool      `json:"active"`
	USSDEnabled     bool      `json:"ussd_enabled"`
	WhatsAppEnabled bool      `json:"whatsapp_enabled"`
	DailyQueryLimit int       `json:"daily_query_limit"`
	CreatedAt       time.Time `json:"created_at"`
}

func officerResponse(o *directory.Officer, dailyLimit int) OfficerResponse {
	return OfficerResponse{
		ID:              o.ID,
		Badge:           o.Badge,
		FullName:        o.FullName,
		Station:         o.Station,
		Rank:            o.Rank,
		Phone:           o.Phone,
		Active:          o.Active,
		USSDEnabled:     o.USSDEnabled,
		WhatsAppEnabled: o.WhatsAppEnabled,
		DailyQueryLimit: dailyLimit,
		CreatedAt:       o.CreatedAt,
	}
}

// EnrollOfficer creates a new officer with a hashed Quick PIN.
func (a *API) EnrollOfficer(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJSON[EnrollOfficerRequest](r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	o, err := a.registry.Enroll(directory.EnrollParams{
		Badge:           req.Badge,
		FullName:        req.FullName,
		Station:         req.Station,
		Rank:            req.Rank,
		Phone:           req.Phone,
		PIN:             req.PIN,
		DailyQueryLimit: req.DailyQueryLimit,
	})
	if err != nil {
		mapError(w, err)
		return
	}

	a.audit.log(AuditOfficerEnrolled, r,
		slog.String("officer_id", o.ID), slog.String("badge", o.Badge))
	writeJSON(w, http.StatusCreated, officerResponse(o, a.limiter.LimitFor(o)))
}

// QuotaResponse is the body of GET /api/v1/officers/{id}/quota.
type QuotaResponse struct {
	OfficerID string                 `json:"officer_id"`
	Quota     ratelimit.Decision     `json:"quota"`
	Stats     *querylog.OfficerStats `json:"stats"`
}

// OfficerQuota reports an officer's remaining daily budget and usage stats.
func (a *API) OfficerQuota(w http.ResponseWriter, r *http.Request) {
	officerID := chi.URLParam(r, "officerID")
	o, err := a.registry.Get(officerID)
	if err != nil {
		mapError(w, err)
		return
	}
	decision, err := a.limiter.Check(o)
	if err != nil {
		mapError(w, err)
		return
	}
	stats, err := a.log.Stats(o.ID, time.Now())
	if err != nil {
		mapError(w, err)
		return
	}
	a.audit.log(AuditQuotaViewed, r, slog.String("officer_id", o.ID))
	writeJSON(w, http.StatusOK, QuotaResponse{OfficerID: o.ID, Quota: decision, Stats: stats})
}

// QueryLogResponse is the paginated audit listing.
type QueryLogResponse struct {
	Entries []querylog.Entry `json:"entries"`
	Meta    ListMeta         `json:"meta"`
}

// ListQueryLog returns retained query-log entries, newest first. Filter by
// officer with ?officer_id= and by channel with ?channel=.
func (a *API) ListQueryLog(w http.ResponseWriter, r *http.Request) {
	var (
		entries []querylog.Entry
		err     error
	)
	if officerID := r.URL.Query().Get("officer_id"); officerID != "" {
		entries, err = a.log.OfficerEntries(officerID)
	} else {
		entries, err = a.log.All()
	}
	if err != nil {
		mapError(w, err)
		return
	}
	if ch := r.URL.Query().Get("channel"); ch != "" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Channel == session.Channel(ch) {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}

	limit, offset := listWindow(r)
	page, meta := entryPage(entries, limit, offset)
	a.audit.log(AuditQueryLogViewed, r, slog.Int("count", len(page)))
	writeJSON(w, http.StatusOK, QueryLogResponse{Entries: page, Meta: meta})
}
