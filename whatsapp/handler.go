package whatsapp

import (
	"encoding/json"
	"net/http"
)

// webhookPayload is the slice of the Business API delivery the engine
// consumes: the first message's sender and whichever input form it carries.
type webhookPayload struct {
	Messages []struct {
		From string `json:"from"`
		Text *struct {
			Body string `json:"body"`
		} `json:"text,omitempty"`
		Interactive *struct {
			ListReply *struct {
				ID string `json:"id"`
			} `json:"list_reply,omitempty"`
			ButtonReply *struct {
				ID string `json:"id"`
			} `json:"button_reply,omitempty"`
		} `json:"interactive,omitempty"`
	} `json:"messages"`
}

// input extracts the user's input from the first message, preferring
// interactive reply ids over free text.
func (p *webhookPayload) input() (from, text string, ok bool) {
	if len(p.Messages) == 0 {
		return "", "", false
	}
	m := p.Messages[0]
	if m.From == "" {
		return "", "", false
	}
	switch {
	case m.Interactive != nil && m.Interactive.ListReply != nil:
		text = m.Interactive.ListReply.ID
	case m.Interactive != nil && m.Interactive.ButtonReply != nil:
		text = m.Interactive.ButtonReply.ID
	case m.Text != nil:
		text = m.Text.Body
	}
	return m.From, text, true
}

// Handler returns the inbound webhook endpoint. The Business API expects a
// prompt 200 and retries anything else; replies reach the officer through
// the outbound client, never through this response.
func (e *Engine) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var payload webhookPayload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			http.Error(w, "malformed webhook body", http.StatusBadRequest)
			return
		}
		from, text, ok := payload.input()
		if !ok {
			// Status-only deliveries (sent/read receipts) have no messages.
			w.WriteHeader(http.StatusOK)
			return
		}
		if err := e.Handle(req.Context(), from, text); err != nil {
			e.logger.Error("whatsapp message handling failed", "from", from, "error", err)
		}
		w.WriteHeader(http.StatusOK)
	}
}
