package api

import (
	"net/http"
	"nexus-mail/domain"
	"time"

	"github.com/google/uuid"
)

type sendMessageRequest struct {
	RecipientTarget string             `json:"recipientTarget"`
	Subject         string             `json:"subject"`
	Content         string             `json:"content"`
	Kind            domain.MessageKind `json:"kind"`
	Priority        domain.Priority    `json:"priority"`
	Tags            []string           `json:"tags"`
	ScheduledFor    *time.Time         `json:"scheduledFor,omitempty"`
}

type countResponse struct {
	Count int `json:"count"`
}

type starResponse struct {
	Starred bool `json:"starred"`
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	filter := domain.Filter(r.URL.Query().Get("filter"))
	if filter == "" {
		filter = domain.FilterAll
	}
	messages, err := s.mailbox.List(actor(r).ID, filter, r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var body sendMessageRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	message, err := s.mailbox.Send(domain.SendMessageCommand{
		SenderID:        actor(r).ID,
		RecipientTarget: body.RecipientTarget,
		Subject:         body.Subject,
		Content:         body.Content,
		Kind:            body.Kind,
		Priority:        body.Priority,
		Tags:            body.Tags,
		ScheduledFor:    body.ScheduledFor,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	count, err := s.mailbox.UnreadCount(actor(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

func (s *Server) markAllRead(w http.ResponseWriter, r *http.Request) {
	changed, err := s.mailbox.MarkAllRead(actor(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: changed})
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.mailbox.Stats()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) getMessage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	message, err := s.mailbox.Get(actor(r).ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, message)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	s.flag(w, r, s.mailbox.MarkRead)
}

func (s *Server) markUnread(w http.ResponseWriter, r *http.Request) {
	s.flag(w, r, s.mailbox.MarkUnread)
}

func (s *Server) recall(w http.ResponseWriter, r *http.Request) {
	s.flag(w, r, s.mailbox.Recall)
}

func (s *Server) flag(w http.ResponseWriter, r *http.Request, apply func(actorID string, id uuid.UUID) error) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err = apply(actor(r).ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleStar(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	starred, err := s.mailbox.ToggleStar(actor(r).ID, id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, starResponse{Starred: starred})
}
