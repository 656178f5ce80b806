package services

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"nexus-mail/contract"
	"nexus-mail/directory"
	"nexus-mail/domain"
	"nexus-mail/domain/event"
	"nexus-mail/domain/mimetypes"
	"nexus-mail/errors"
	"nexus-mail/repositories"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ClosingNotice is appended by the admin who closes a session.
const ClosingNotice = "This conversation has been closed by support."

type IChatService interface {
	GetOrCreateForUser(userID string) (uuid.UUID, error)
	StartNewConversation(userID string) (uuid.UUID, error)
	Get(sessionID uuid.UUID) (domain.ChatSession, error)
	List() ([]domain.ChatSession, error)
	ListForUser(userID string) ([]domain.ChatSession, error)
	Append(sessionID uuid.UUID, cmd domain.AppendChatCommand) (domain.ChatMessage, error)
	AppendImage(sessionID uuid.UUID, senderID string, data []byte, caption string) (domain.ChatMessage, error)
	Attachment(ref string) (domain.Attachment, error)
	Messages(sessionID uuid.UUID) ([]domain.ChatMessage, error)
	MarkReadByAdmin(actorID string, sessionID uuid.UUID) error
	MarkReadByMember(actorID string, sessionID uuid.UUID) error
	Close(actorID string, sessionID uuid.UUID) error
}

// ChatService owns both chat stores. A single mutex and a single badger
// transaction cover a message write and the session activity it causes.
type ChatService struct {
	mu                 sync.Mutex
	db                 *badger.DB
	log                *slog.Logger
	directory          directory.IDirectory
	sessions           repositories.ISessionRepository
	messages           repositories.IChatMessageRepository
	moderator          contract.Moderator
	publisher          contract.EventPublisher
	maxAttachmentBytes int
	now                Clock
}

func NewChatService(log *slog.Logger, db *badger.DB, dir directory.IDirectory,
	sessions repositories.ISessionRepository, messages repositories.IChatMessageRepository,
	moderator contract.Moderator, publisher contract.EventPublisher, maxAttachmentBytes int) *ChatService {
	return &ChatService{
		db:                 db,
		log:                log,
		directory:          dir,
		sessions:           sessions,
		messages:           messages,
		moderator:          moderator,
		publisher:          publisher,
		maxAttachmentBytes: maxAttachmentBytes,
		now:                systemClock,
	}
}

func (s *ChatService) WithClock(now Clock) *ChatService {
	s.now = now
	return s
}

// GetOrCreateForUser returns the member's current session whatever its status,
// or opens the first one.
func (s *ChatService) GetOrCreateForUser(userID string) (uuid.UUID, error) {
	if _, err := s.member(userID); err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := s.sessions.CurrentSession(txn, userID)
		switch {
		case err == nil:
			id = current.ID
			return nil
		case !stderrors.Is(err, errors.ErrNotFound):
			return err
		}
		session := s.newSession(userID)
		id = session.ID
		return s.sessions.SetCurrentSession(txn, session)
	})
	return id, err
}

// StartNewConversation never resurrects a closed session: it keeps it as history
// and opens a fresh one. An active session is returned unchanged.
func (s *ChatService) StartNewConversation(userID string) (uuid.UUID, error) {
	if _, err := s.member(userID); err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.Update(func(txn *badger.Txn) error {
		current, err := s.sessions.CurrentSession(txn, userID)
		if err == nil && current.IsActive() {
			id = current.ID
			return nil
		}
		if err != nil && !stderrors.Is(err, errors.ErrNotFound) {
			return err
		}
		session := s.newSession(userID)
		id = session.ID
		return s.sessions.SetCurrentSession(txn, session)
	})
	if err == nil {
		s.log.Info("Conversation started", "user", userID, "session", id)
	}
	return id, err
}

func (s *ChatService) newSession(userID string) domain.ChatSession {
	now := s.now()
	return domain.ChatSession{
		ID:            uuid.New(),
		UserID:        userID,
		Status:        domain.SessionActive,
		CreatedAt:     now,
		LastMessageAt: now,
	}
}

func (s *ChatService) Get(sessionID uuid.UUID) (domain.ChatSession, error) {
	var session domain.ChatSession
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		session, err = s.loadSession(txn, sessionID)
		return err
	})
	return session, err
}

// List is the admin inbox: every session, most recent activity first.
func (s *ChatService) List() ([]domain.ChatSession, error) {
	var sessions []domain.ChatSession
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		sessions, err = s.sessions.ListSessions(txn)
		return err
	})
	return sessions, err
}

// ListForUser returns a member's sessions, closed ones included, oldest first.
func (s *ChatService) ListForUser(userID string) ([]domain.ChatSession, error) {
	var sessions []domain.ChatSession
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		sessions, err = s.sessions.ListUserSessions(txn, userID)
		return err
	})
	return sessions, err
}

func (s *ChatService) Append(sessionID uuid.UUID, cmd domain.AppendChatCommand) (domain.ChatMessage, error) {
	cmd.Content = strings.TrimSpace(cmd.Content)
	if err := validateCommand(cmd); err != nil {
		return domain.ChatMessage{}, err
	}
	sender, ok := s.directory.Resolve(cmd.SenderID)
	if !ok {
		return domain.ChatMessage{}, fmt.Errorf("%w: unknown sender %q", errors.ErrValidation, cmd.SenderID)
	}
	if cmd.Kind == domain.ChatSystem && !sender.IsAdmin() {
		return domain.ChatMessage{}, fmt.Errorf("%w: system messages are admin only", errors.ErrForbidden)
	}
	cmd.Content = s.censor(sender, cmd.Content)

	var appended domain.ChatMessage
	s.mu.Lock()
	err := s.db.Update(func(txn *badger.Txn) error {
		if cmd.Kind == domain.ChatImage {
			attachment, err := s.messages.GetAttachment(txn, cmd.AttachmentRef)
			if err != nil {
				return fmt.Errorf("%w: unknown attachment %q", errors.ErrValidation, cmd.AttachmentRef)
			}
			if attachment.SessionID != sessionID {
				return fmt.Errorf("%w: attachment %q belongs to another session", errors.ErrValidation, cmd.AttachmentRef)
			}
		}
		var err error
		appended, err = s.append(txn, sessionID, sender, cmd)
		return err
	})
	s.mu.Unlock()
	if err != nil {
		return domain.ChatMessage{}, err
	}
	s.afterAppend(appended)
	return appended, nil
}

// AppendImage stores the picture and the message that shows it in one transaction.
func (s *ChatService) AppendImage(sessionID uuid.UUID, senderID string, data []byte, caption string) (domain.ChatMessage, error) {
	if len(data) == 0 {
		return domain.ChatMessage{}, fmt.Errorf("%w: empty attachment", errors.ErrValidation)
	}
	if s.maxAttachmentBytes > 0 && len(data) > s.maxAttachmentBytes {
		return domain.ChatMessage{}, fmt.Errorf("%w: attachment exceeds %d bytes", errors.ErrValidation, s.maxAttachmentBytes)
	}
	mimeType, ok := mimetypes.DetectImage(data)
	if !ok {
		return domain.ChatMessage{}, fmt.Errorf("%w: attachment is not a supported image", errors.ErrValidation)
	}
	sender, ok := s.directory.Resolve(senderID)
	if !ok {
		return domain.ChatMessage{}, fmt.Errorf("%w: unknown sender %q", errors.ErrValidation, senderID)
	}

	attachment := domain.Attachment{
		Ref:       uuid.NewString(),
		SessionID: sessionID,
		MimeType:  string(mimeType),
		Size:      len(data),
		Data:      append([]byte(nil), data...),
		CreatedAt: s.now(),
	}
	cmd := domain.AppendChatCommand{
		SenderID:      senderID,
		Content:       s.censor(sender, strings.TrimSpace(caption)),
		Kind:          domain.ChatImage,
		AttachmentRef: attachment.Ref,
	}

	var appended domain.ChatMessage
	s.mu.Lock()
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		if appended, err = s.append(txn, sessionID, sender, cmd); err != nil {
			return err
		}
		return s.messages.StoreAttachment(txn, attachment)
	})
	s.mu.Unlock()
	if err != nil {
		return domain.ChatMessage{}, err
	}
	s.afterAppend(appended)
	return appended, nil
}

// append enforces the session preconditions, then writes the message and records
// the activity. The caller holds mu and owns txn.
func (s *ChatService) append(txn *badger.Txn, sessionID uuid.UUID, sender domain.User, cmd domain.AppendChatCommand) (domain.ChatMessage, error) {
	session, err := s.loadSession(txn, sessionID)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	if sender.Role == domain.RoleMember {
		if session.UserID != sender.ID {
			return domain.ChatMessage{}, fmt.Errorf("%w: session %s belongs to another member", errors.ErrForbidden, sessionID)
		}
		if !session.IsActive() {
			return domain.ChatMessage{}, fmt.Errorf("%w: %s", errors.ErrSessionClosed, sessionID)
		}
	}

	at := s.now()
	if at.Before(session.LastMessageAt) {
		at = session.LastMessageAt
	}
	message := domain.ChatMessage{
		ID:            uuid.New(),
		SessionID:     sessionID,
		SenderID:      sender.ID,
		SenderRole:    sender.Role,
		Content:       cmd.Content,
		Kind:          cmd.Kind,
		AttachmentRef: cmd.AttachmentRef,
		Timestamp:     at,
		Seq:           session.NextSeq,
	}
	if err = s.messages.StoreChatMessage(txn, message); err != nil {
		return domain.ChatMessage{}, err
	}
	if _, err = s.sessions.RecordActivity(txn, sessionID, message.Preview(), sender.Role, at); err != nil {
		return domain.ChatMessage{}, err
	}
	return message, nil
}

// censor filters member text, captions included. Admin and system content is kept as is.
func (s *ChatService) censor(sender domain.User, content string) string {
	if s.moderator == nil || sender.Role != domain.RoleMember || content == "" {
		return content
	}
	return s.moderator.Censor(content)
}

func (s *ChatService) afterAppend(message domain.ChatMessage) {
	s.log.Debug("Chat message appended", "session", message.SessionID,
		"sender", message.SenderID, "kind", message.Kind, "seq", message.Seq)
	s.publish(event.ChatMessageAppended{Message: message})
}

func (s *ChatService) Attachment(ref string) (domain.Attachment, error) {
	var attachment domain.Attachment
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		attachment, err = s.messages.GetAttachment(txn, ref)
		return err
	})
	return attachment, err
}

// Messages returns the session transcript in the order it was written.
func (s *ChatService) Messages(sessionID uuid.UUID) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	err := s.db.View(func(txn *badger.Txn) error {
		if _, err := s.loadSession(txn, sessionID); err != nil {
			return err
		}
		var err error
		messages, err = s.messages.ListChatMessages(txn, sessionID)
		return err
	})
	return messages, err
}

// MarkReadByAdmin clears the admin counter and the member messages it counts.
func (s *ChatService) MarkReadByAdmin(actorID string, sessionID uuid.UUID) error {
	if _, err := s.admin(actorID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		session, err := s.loadSession(txn, sessionID)
		if err != nil {
			return err
		}
		if err = s.markRead(txn, sessionID, func(m domain.ChatMessage) bool {
			return m.SenderRole == domain.RoleMember
		}); err != nil {
			return err
		}
		session.UnreadCountForAdmin = 0
		return s.sessions.StoreSession(txn, session)
	})
}

// MarkReadByMember marks support replies as seen by the session owner.
func (s *ChatService) MarkReadByMember(actorID string, sessionID uuid.UUID) error {
	if _, err := s.member(actorID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(txn *badger.Txn) error {
		session, err := s.loadSession(txn, sessionID)
		if err != nil {
			return err
		}
		if session.UserID != actorID {
			return fmt.Errorf("%w: session %s belongs to another member", errors.ErrForbidden, sessionID)
		}
		return s.markRead(txn, sessionID, func(m domain.ChatMessage) bool {
			return m.SenderRole != domain.RoleMember
		})
	})
}

func (s *ChatService) markRead(txn *badger.Txn, sessionID uuid.UUID, match func(domain.ChatMessage) bool) error {
	messages, err := s.messages.ListChatMessages(txn, sessionID)
	if err != nil {
		return err
	}
	for _, m := range messages {
		if m.IsRead || !match(m) {
			continue
		}
		m.IsRead = true
		if err = s.messages.StoreChatMessage(txn, m); err != nil {
			return err
		}
	}
	return nil
}

// Close moves an active session to closed and leaves a system notice in the
// transcript. Closed sessions keep their history.
func (s *ChatService) Close(actorID string, sessionID uuid.UUID) error {
	admin, err := s.admin(actorID)
	if err != nil {
		return err
	}
	var notice domain.ChatMessage
	closedAt := s.now()
	s.mu.Lock()
	err = s.db.Update(func(txn *badger.Txn) error {
		session, err := s.loadSession(txn, sessionID)
		if err != nil {
			return err
		}
		if !session.IsActive() {
			return fmt.Errorf("%w: session %s is %s", errors.ErrInvalidTransition, sessionID, session.Status)
		}
		session.Status = domain.SessionClosed
		session.ClosedAt = &closedAt
		if err = s.sessions.StoreSession(txn, session); err != nil {
			return err
		}
		notice, err = s.append(txn, sessionID, admin, domain.AppendChatCommand{
			SenderID: admin.ID,
			Content:  ClosingNotice,
			Kind:     domain.ChatSystem,
		})
		return err
	})
	s.mu.Unlock()
	if err != nil {
		return err
	}
	s.log.Info("Chat session closed", "session", sessionID, "admin", actorID)
	s.publish(event.SessionClosed{SessionID: sessionID, ClosedBy: actorID, At: closedAt})
	s.publish(event.ChatMessageAppended{Message: notice})
	return nil
}

func (s *ChatService) loadSession(txn *badger.Txn, sessionID uuid.UUID) (domain.ChatSession, error) {
	session, err := s.sessions.GetSession(txn, sessionID)
	if stderrors.Is(err, errors.ErrNotFound) {
		return domain.ChatSession{}, fmt.Errorf("%w: %s", errors.ErrInvalidSession, sessionID)
	}
	return session, err
}

func (s *ChatService) member(userID string) (domain.User, error) {
	u, ok := s.directory.Resolve(userID)
	if !ok {
		return domain.User{}, fmt.Errorf("%w: unknown user %q", errors.ErrNotFound, userID)
	}
	if u.Role != domain.RoleMember {
		return domain.User{}, fmt.Errorf("%w: support sessions are for members", errors.ErrForbidden)
	}
	return u, nil
}

func (s *ChatService) admin(actorID string) (domain.User, error) {
	u, ok := s.directory.Resolve(actorID)
	if !ok || !u.IsAdmin() {
		return domain.User{}, fmt.Errorf("%w: %q is not an admin", errors.ErrForbidden, actorID)
	}
	return u, nil
}

func (s *ChatService) publish(e event.DomainEvent) {
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
}
