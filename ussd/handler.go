package ussd

import (
	"net/http"
)

// Handler returns the gateway webhook endpoint. The gateway ignores HTTP
// status codes beyond "not 200", so every handled request answers 200 and
// carries errors in-band as END text; the only 400 is a request missing
// the identity fields, where no session can even be attributed.
func (r *Router) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := req.ParseForm(); err != nil {
			http.Error(w, "malformed form body", http.StatusBadRequest)
			return
		}
		gw := Request{
			SessionID: req.PostFormValue("sessionId"),
			Phone:     req.PostFormValue("phoneNumber"),
			Text:      req.PostFormValue("text"),
		}
		if gw.SessionID == "" || gw.Phone == "" {
			http.Error(w, "sessionId and phoneNumber are required", http.StatusBadRequest)
			return
		}

		resp := r.Handle(req.Context(), gw)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(resp.Render()))
	}
}
