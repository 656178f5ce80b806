package services

import (
	"fmt"
	"log/slog"
	"math"
	"nexus-mail/contract"
	"nexus-mail/directory"
	"nexus-mail/domain"
	"nexus-mail/domain/event"
	"nexus-mail/errors"
	"nexus-mail/repositories"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMailboxService interface {
	Send(cmd domain.SendMessageCommand) (domain.Message, error)
	MarkRead(actorID string, id uuid.UUID) error
	MarkUnread(actorID string, id uuid.UUID) error
	MarkAllRead(actorID string) (int, error)
	ToggleStar(actorID string, id uuid.UUID) (bool, error)
	Recall(actorID string, id uuid.UUID) error
	Get(actorID string, id uuid.UUID) (domain.Message, error)
	List(actorID string, filter domain.Filter, searchTerm string) ([]domain.Message, error)
	UnreadCount(actorID string) (int, error)
	Stats() (domain.MailboxStats, error)
}

// MailboxService owns mailbox messages and the per-viewer flags around them.
// Mutations are serialized by mu; reads run on badger snapshots.
type MailboxService struct {
	mu         sync.Mutex
	db         *badger.DB
	log        *slog.Logger
	directory  directory.IDirectory
	repository repositories.IMessageRepository
	publisher  contract.EventPublisher
	now        Clock
}

func NewMailboxService(log *slog.Logger, db *badger.DB, dir directory.IDirectory,
	repository repositories.IMessageRepository, publisher contract.EventPublisher) *MailboxService {
	return &MailboxService{
		db:         db,
		log:        log,
		directory:  dir,
		repository: repository,
		publisher:  publisher,
		now:        systemClock,
	}
}

func (s *MailboxService) WithClock(now Clock) *MailboxService {
	s.now = now
	return s
}

func (s *MailboxService) Send(cmd domain.SendMessageCommand) (domain.Message, error) {
	cmd.Subject = strings.TrimSpace(cmd.Subject)
	cmd.Content = strings.TrimSpace(cmd.Content)
	if err := validateCommand(cmd); err != nil {
		return domain.Message{}, err
	}
	sender, ok := s.directory.Resolve(cmd.SenderID)
	if !ok {
		return domain.Message{}, fmt.Errorf("%w: unknown sender %q", errors.ErrValidation, cmd.SenderID)
	}
	if cmd.Kind.IsSystem() && !sender.IsAdmin() {
		return domain.Message{}, fmt.Errorf("%w: only admins can send %s messages", errors.ErrForbidden, cmd.Kind)
	}
	if cmd.RecipientTarget == domain.Everyone {
		if !sender.IsAdmin() {
			return domain.Message{}, fmt.Errorf("%w: only admins can write to everyone", errors.ErrForbidden)
		}
	} else if _, ok = s.directory.Resolve(cmd.RecipientTarget); !ok {
		return domain.Message{}, fmt.Errorf("%w: unknown recipient %q", errors.ErrValidation, cmd.RecipientTarget)
	}

	message := repositories.DiskMessage{
		ID:              uuid.New(),
		SenderID:        cmd.SenderID,
		RecipientTarget: cmd.RecipientTarget,
		Subject:         cmd.Subject,
		Content:         cmd.Content,
		Kind:            cmd.Kind,
		Priority:        cmd.Priority,
		CreatedAt:       s.now(),
		Tags:            append([]string(nil), cmd.Tags...),
		ScheduledFor:    cmd.ScheduledFor,
	}
	// The sender's own copy starts read: recipients reading it never changes the sender view.
	senderFlags := repositories.ViewerFlags{Read: domain.VisibleTo(message.RecipientTarget, sender.ID)}

	s.mu.Lock()
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := s.repository.StoreMessage(txn, message); err != nil {
			return err
		}
		if senderFlags.Read {
			return s.repository.SetFlags(txn, message.ID, sender.ID, senderFlags)
		}
		return nil
	})
	s.mu.Unlock()
	if err != nil {
		return domain.Message{}, err
	}

	s.log.Info("Message sent", "id", message.ID, "sender", message.SenderID,
		"target", message.RecipientTarget, "kind", message.Kind, "priority", message.Priority)
	s.publish(event.MessageSent{
		ID:              message.ID,
		SenderID:        message.SenderID,
		RecipientTarget: message.RecipientTarget,
		Subject:         message.Subject,
		At:              message.CreatedAt,
	})
	return toMessage(message, senderFlags), nil
}

func (s *MailboxService) MarkRead(actorID string, id uuid.UUID) error {
	return s.updateFlags(actorID, id, func(f repositories.ViewerFlags) repositories.ViewerFlags {
		f.Read = true
		return f
	})
}

func (s *MailboxService) MarkUnread(actorID string, id uuid.UUID) error {
	return s.updateFlags(actorID, id, func(f repositories.ViewerFlags) repositories.ViewerFlags {
		f.Read = false
		return f
	})
}

func (s *MailboxService) ToggleStar(actorID string, id uuid.UUID) (bool, error) {
	var starred bool
	err := s.updateFlags(actorID, id, func(f repositories.ViewerFlags) repositories.ViewerFlags {
		f.Starred = !f.Starred
		starred = f.Starred
		return f
	})
	return starred, err
}

// updateFlags applies change to the actor's flags. Messages the actor cannot
// see are reported as not found.
func (s *MailboxService) updateFlags(actorID string, id uuid.UUID, change func(repositories.ViewerFlags) repositories.ViewerFlags) error {
	if _, err := s.actor(actorID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		message, err := s.repository.GetMessage(txn, id)
		if err != nil {
			return err
		}
		if !domain.VisibleTo(message.RecipientTarget, actorID) {
			return fmt.Errorf("%w: message %s", errors.ErrNotFound, id)
		}
		current, err := s.repository.GetFlags(txn, id, actorID)
		if err != nil {
			return err
		}
		next := change(current)
		if next == current {
			return nil
		}
		return s.repository.SetFlags(txn, id, actorID, next)
	})
}

// MarkAllRead marks every message visible to the actor as read in one transaction
// and returns how many flags actually changed.
func (s *MailboxService) MarkAllRead(actorID string) (int, error) {
	if _, err := s.actor(actorID); err != nil {
		return 0, err
	}
	changed := 0
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		messages, err := s.repository.ListMessages(txn)
		if err != nil {
			return err
		}
		visible := lo.Filter(messages, func(m repositories.DiskMessage, _ int) bool {
			return domain.VisibleTo(m.RecipientTarget, actorID)
		})
		flags, err := s.repository.FlagsByMessage(txn, visible, actorID)
		if err != nil {
			return err
		}
		for _, m := range visible {
			f := flags[m.ID]
			if f.Read {
				continue
			}
			f.Read = true
			if err = s.repository.SetFlags(txn, m.ID, actorID, f); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Debug("Mailbox marked read", "actor", actorID, "changed", changed)
	return changed, nil
}

// Recall deletes the message for every viewer. A second recall reports ErrNotFound.
func (s *MailboxService) Recall(actorID string, id uuid.UUID) error {
	actor, err := s.actor(actorID)
	if err != nil {
		return err
	}
	var recipientTarget string
	s.mu.Lock()
	err = s.db.Update(func(txn *badger.Txn) error {
		message, err := s.repository.GetMessage(txn, id)
		if err != nil {
			return err
		}
		if message.SenderID != actor.ID && !actor.IsAdmin() {
			return fmt.Errorf("%w: only the sender or an admin can recall", errors.ErrForbidden)
		}
		recipientTarget = message.RecipientTarget
		return s.repository.DeleteMessage(txn, id)
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.log.Info("Message recalled", "id", id, "actor", actorID)
	s.publish(event.MessageRecalled{ID: id, ActorID: actorID, RecipientTarget: recipientTarget, At: s.now()})
	return nil
}

func (s *MailboxService) Get(actorID string, id uuid.UUID) (domain.Message, error) {
	if _, err := s.actor(actorID); err != nil {
		return domain.Message{}, err
	}
	var out domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		message, err := s.repository.GetMessage(txn, id)
		if err != nil {
			return err
		}
		if !domain.VisibleTo(message.RecipientTarget, actorID) {
			return fmt.Errorf("%w: message %s", errors.ErrNotFound, id)
		}
		flags, err := s.repository.GetFlags(txn, id, actorID)
		if err != nil {
			return err
		}
		out = toMessage(message, flags)
		return nil
	})
	return out, err
}

// List projects the messages visible to the actor, newest first.
func (s *MailboxService) List(actorID string, filter domain.Filter, searchTerm string) ([]domain.Message, error) {
	if !filter.Valid() {
		return nil, fmt.Errorf("%w: unknown filter %q", errors.ErrValidation, filter)
	}
	if _, err := s.actor(actorID); err != nil {
		return nil, err
	}
	var projected []domain.Message
	err := s.db.View(func(txn *badger.Txn) error {
		messages, err := s.repository.ListMessages(txn)
		if err != nil {
			return err
		}
		visible := lo.Filter(messages, func(m repositories.DiskMessage, _ int) bool {
			return domain.VisibleTo(m.RecipientTarget, actorID)
		})
		flags, err := s.repository.FlagsByMessage(txn, visible, actorID)
		if err != nil {
			return err
		}
		projected = lo.Map(visible, func(m repositories.DiskMessage, _ int) domain.Message {
			return toMessage(m, flags[m.ID])
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	term := strings.ToLower(strings.TrimSpace(searchTerm))
	return lo.Filter(projected, func(m domain.Message, _ int) bool {
		return matchesFilter(m, filter) && matchesSearch(m, term)
	}), nil
}

func (s *MailboxService) UnreadCount(actorID string) (int, error) {
	unread, err := s.List(actorID, domain.FilterUnread, "")
	if err != nil {
		return 0, err
	}
	return len(unread), nil
}

// Stats summarizes the mailbox for the admin dashboard. A delivery is one
// (message, recipient) pair; the sender never counts as a recipient.
func (s *MailboxService) Stats() (domain.MailboxStats, error) {
	users := s.directory.List()
	stats := domain.MailboxStats{ActiveUsers: len(users)}
	err := s.db.View(func(txn *badger.Txn) error {
		messages, err := s.repository.ListMessages(txn)
		if err != nil {
			return err
		}
		for _, m := range messages {
			stats.Total++
			switch m.Kind {
			case domain.KindBroadcast:
				stats.Broadcasts++
			case domain.KindSystem:
				stats.System++
			case domain.KindPersonal:
				stats.Personal++
			}
			flags, err := s.repository.ListFlags(txn, m.ID)
			if err != nil {
				return err
			}
			for _, u := range users {
				if u.ID == m.SenderID || !domain.VisibleTo(m.RecipientTarget, u.ID) {
					continue
				}
				stats.Deliveries++
				if flags[u.ID].Read {
					stats.ReadDeliveries++
				}
			}
		}
		return nil
	})
	if stats.Deliveries > 0 {
		stats.ReadRate = int(math.Round(float64(stats.ReadDeliveries) * 100 / float64(stats.Deliveries)))
	}
	return stats, err
}

func (s *MailboxService) actor(actorID string) (domain.User, error) {
	u, ok := s.directory.Resolve(actorID)
	if !ok {
		return domain.User{}, fmt.Errorf("%w: unknown actor %q", errors.ErrNotFound, actorID)
	}
	return u, nil
}

func (s *MailboxService) publish(e event.DomainEvent) {
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
}

func matchesFilter(m domain.Message, filter domain.Filter) bool {
	switch filter {
	case domain.FilterUnread:
		return !m.IsRead
	case domain.FilterStarred:
		return m.IsStarred
	case domain.FilterSystem:
		return m.Kind.IsSystem()
	default:
		return true
	}
}

func matchesSearch(m domain.Message, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(m.Subject), term) ||
		strings.Contains(strings.ToLower(m.Content), term)
}

func toMessage(m repositories.DiskMessage, flags repositories.ViewerFlags) domain.Message {
	return domain.Message{
		ID:              m.ID,
		SenderID:        m.SenderID,
		RecipientTarget: m.RecipientTarget,
		Subject:         m.Subject,
		Content:         m.Content,
		Kind:            m.Kind,
		Priority:        m.Priority,
		IsRead:          flags.Read,
		IsStarred:       flags.Starred,
		CreatedAt:       m.CreatedAt,
		Tags:            append([]string(nil), m.Tags...),
		ScheduledFor:    m.ScheduledFor,
	}
}
