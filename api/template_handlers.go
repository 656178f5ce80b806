package api

import (
	"net/http"
	"nexus-mail/domain"
)

type saveTemplateRequest struct {
	Name     string          `json:"name"`
	Subject  string          `json:"subject"`
	Content  string          `json:"content"`
	Priority domain.Priority `json:"priority"`
}

type sendTemplateRequest struct {
	RecipientTarget string             `json:"recipientTarget"`
	Kind            domain.MessageKind `json:"kind"`
	Tags            []string           `json:"tags"`
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.templates.List()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if templates == nil {
		templates = []domain.Template{}
	}
	writeJSON(w, http.StatusOK, templates)
}

func (s *Server) saveTemplate(w http.ResponseWriter, r *http.Request) {
	var body saveTemplateRequest
	if err := decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	template, err := s.templates.Save(domain.SaveTemplateCommand{
		Name:     body.Name,
		Subject:  body.Subject,
		Content:  body.Content,
		Priority: body.Priority,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, template)
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err = s.templates.Delete(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// sendTemplate composes a message from the template and sends it as the actor.
func (s *Server) sendTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body sendTemplateRequest
	if err = decode(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}
	if body.Kind == "" {
		body.Kind = domain.KindBroadcast
	}
	cmd, err := s.templates.Compose(id, actor(r).ID, body.RecipientTarget, body.Kind, body.Tags)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	message, err := s.mailbox.Send(cmd)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}
