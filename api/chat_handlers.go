package api

import (
	"fmt"
	"io"
	"net/http"
	"nexus-mail/domain"
	"nexus-mail/errors"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type appendChatRequest struct {
	Content       string          `json:"content"`
	Kind          domain.ChatKind `json:"kind"`
	AttachmentRef string          `json:"attachmentRef,omitempty"`
}

// multipartOverhead leaves room for the form boundaries around the image part.
const multipartOverhead = 1 << 20

func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, r, s.chat.GetOrCreateForUser)
}

func (s *Server) newSession(w http.ResponseWriter, r *http.Request) {
	s.respondSession(w, r, s.chat.StartNewConversation)
}

func (s *Server) respondSession(w http.ResponseWriter, r *http.Request, open func(userID string) (uuid.UUID, error)) {
	id, err := open(actor(r).ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	session, err := s.chat.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// listSessions is the admin inbox, or the member's own history.
func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	var (
		sessions []domain.ChatSession
		err      error
	)
	if user := actor(r); user.IsAdmin() {
		sessions, err = s.chat.List()
	} else {
		sessions, err = s.chat.ListForUser(user.ID)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if sessions == nil {
		sessions = []domain.ChatSession{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// accessibleSession loads the session in the path. Members only reach their own.
func (s *Server) accessibleSession(r *http.Request) (domain.ChatSession, error) {
	id, err := pathID(r)
	if err != nil {
		return domain.ChatSession{}, err
	}
	return s.checkSession(r, id)
}

func (s *Server) checkSession(r *http.Request, id uuid.UUID) (domain.ChatSession, error) {
	session, err := s.chat.Get(id)
	if err != nil {
		return domain.ChatSession{}, err
	}
	if user := actor(r); !user.IsAdmin() && session.UserID != user.ID {
		return domain.ChatSession{}, fmt.Errorf("%w: session %s", errors.ErrForbidden, id)
	}
	return session, nil
}

func (s *Server) chatMessages(w http.ResponseWriter, r *http.Request) {
	session, err := s.accessibleSession(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	messages, err := s.chat.Messages(session.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if messages == nil {
		messages = []domain.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, messages)
}

func (s *Server) appendChat(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body appendChatRequest
	if err = decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Kind == "" {
		body.Kind = domain.ChatText
	}
	message, err := s.chat.Append(id, domain.AppendChatCommand{
		SenderID:      actor(r).ID,
		Content:       body.Content,
		Kind:          body.Kind,
		AttachmentRef: body.AttachmentRef,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

// appendImage expects a multipart form with an "image" file and an optional "caption".
func (s *Server) appendImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxAttachmentBytes+multipartOverhead)
	if err = r.ParseMultipartForm(s.maxAttachmentBytes); err != nil {
		s.writeError(w, r, fmt.Errorf("%w: invalid upload: %v", errors.ErrValidation, err))
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: missing image", errors.ErrValidation))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, s.maxAttachmentBytes+1))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	message, err := s.chat.AppendImage(id, actor(r).ID, data, r.FormValue("caption"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

func (s *Server) markChatRead(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if user := actor(r); user.IsAdmin() {
		err = s.chat.MarkReadByAdmin(user.ID, id)
	} else {
		err = s.chat.MarkReadByMember(user.ID, id)
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err = s.chat.Close(actor(r).ID, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) attachment(w http.ResponseWriter, r *http.Request) {
	attachment, err := s.chat.Attachment(chi.URLParam(r, "ref"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err = s.checkSession(r, attachment.SessionID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", attachment.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(attachment.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(attachment.Data)
}
