package api

import (
	"fmt"
	"net/http"
	"nexus-mail/assistant"
	"nexus-mail/errors"
	"strings"
)

type summarizeRequest struct {
	Text string `json:"text"`
}

type summarizeResponse struct {
	Summary string `json:"summary"`
}

type draftRequest struct {
	Topic string `json:"topic"`
	Tone  string `json:"tone"`
}

func (s *Server) summarize(w http.ResponseWriter, r *http.Request) {
	var body summarizeRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		s.writeError(w, r, fmt.Errorf("%w: empty text", errors.ErrValidation))
		return
	}
	writeJSON(w, http.StatusOK, summarizeResponse{Summary: s.gateway.Summarize(r.Context(), body.Text)})
}

func (s *Server) draft(w http.ResponseWriter, r *http.Request) {
	var body draftRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(body.Topic) == "" {
		s.writeError(w, r, fmt.Errorf("%w: empty topic", errors.ErrValidation))
		return
	}
	writeJSON(w, http.StatusOK, s.gateway.Draft(r.Context(), strings.TrimSpace(body.Topic), assistant.ParseTone(body.Tone)))
}
