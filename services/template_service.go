package services

import (
	"log/slog"
	"nexus-mail/domain"
	"nexus-mail/repositories"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type ITemplateService interface {
	Save(cmd domain.SaveTemplateCommand) (domain.Template, error)
	List() ([]domain.Template, error)
	Get(id uuid.UUID) (domain.Template, error)
	Delete(id uuid.UUID) error
	Compose(id uuid.UUID, senderID, recipientTarget string, kind domain.MessageKind, tags []string) (domain.SendMessageCommand, error)
}

type TemplateService struct {
	mu         sync.Mutex
	db         *badger.DB
	log        *slog.Logger
	repository repositories.ITemplateRepository
	now        Clock
}

func NewTemplateService(log *slog.Logger, db *badger.DB, repository repositories.ITemplateRepository) *TemplateService {
	return &TemplateService{db: db, log: log, repository: repository, now: systemClock}
}

func (s *TemplateService) WithClock(now Clock) *TemplateService {
	s.now = now
	return s
}

func (s *TemplateService) Save(cmd domain.SaveTemplateCommand) (domain.Template, error) {
	cmd.Name = strings.TrimSpace(cmd.Name)
	cmd.Subject = strings.TrimSpace(cmd.Subject)
	cmd.Content = strings.TrimSpace(cmd.Content)
	if err := validateCommand(cmd); err != nil {
		return domain.Template{}, err
	}
	template := domain.Template{
		ID:        uuid.New(),
		Name:      cmd.Name,
		Subject:   cmd.Subject,
		Content:   cmd.Content,
		Priority:  cmd.Priority,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Update(func(txn *badger.Txn) error {
		return s.repository.StoreTemplate(txn, template)
	}); err != nil {
		return domain.Template{}, err
	}
	s.log.Debug("Template saved", "id", template.ID, "name", template.Name)
	return template, nil
}

func (s *TemplateService) List() ([]domain.Template, error) {
	var templates []domain.Template
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		templates, err = s.repository.ListTemplates(txn)
		return err
	})
	return templates, err
}

func (s *TemplateService) Get(id uuid.UUID) (domain.Template, error) {
	var template domain.Template
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		template, err = s.repository.GetTemplate(txn, id)
		return err
	})
	return template, err
}

func (s *TemplateService) Delete(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		return s.repository.DeleteTemplate(txn, id)
	})
}

// Compose copies the template into a send command. Later edits or deletion of the
// template do not affect messages already sent from it.
func (s *TemplateService) Compose(id uuid.UUID, senderID, recipientTarget string, kind domain.MessageKind, tags []string) (domain.SendMessageCommand, error) {
	template, err := s.Get(id)
	if err != nil {
		return domain.SendMessageCommand{}, err
	}
	return domain.SendMessageCommand{
		SenderID:        senderID,
		RecipientTarget: recipientTarget,
		Subject:         template.Subject,
		Content:         template.Content,
		Kind:            kind,
		Priority:        template.Priority,
		Tags:            append([]string(nil), tags...),
	}, nil
}
