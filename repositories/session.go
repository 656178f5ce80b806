package repositories

import (
	"fmt"
	"nexus-mail/domain"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type ISessionRepository interface {
	StoreSession(txn *badger.Txn, session domain.ChatSession) error
	GetSession(txn *badger.Txn, id uuid.UUID) (domain.ChatSession, error)
	CurrentSession(txn *badger.Txn, userID string) (domain.ChatSession, error)
	SetCurrentSession(txn *badger.Txn, session domain.ChatSession) error
	ListSessions(txn *badger.Txn) ([]domain.ChatSession, error)
	ListUserSessions(txn *badger.Txn, userID string) ([]domain.ChatSession, error)
	RecordActivity(txn *badger.Txn, id uuid.UUID, preview string, authorRole domain.Role, at time.Time) (domain.ChatSession, error)
}

type SessionRepository struct{}

func NewSessionRepository() SessionRepository {
	return SessionRepository{}
}

func sessionKey(id uuid.UUID) string {
	return "sess:" + id.String()
}

// currentSessionKey points to the session a member is talking in.
func currentSessionKey(userID string) string {
	return "sesscur:" + userID
}

// sessionHistoryKey is formatted as "sesshist:{user}:{created_padded}:{uuid}"
// so that a user's sessions list chronologically.
func sessionHistoryKey(s domain.ChatSession) string {
	return fmt.Sprintf("sesshist:%s:%019d:%s", s.UserID, s.CreatedAt.UnixNano(), s.ID)
}

func (r SessionRepository) StoreSession(txn *badger.Txn, session domain.ChatSession) error {
	return set(txn, sessionKey(session.ID), session)
}

func (r SessionRepository) GetSession(txn *badger.Txn, id uuid.UUID) (domain.ChatSession, error) {
	return get[domain.ChatSession](txn, sessionKey(id))
}

func (r SessionRepository) CurrentSession(txn *badger.Txn, userID string) (domain.ChatSession, error) {
	id, err := get[uuid.UUID](txn, currentSessionKey(userID))
	if err != nil {
		return domain.ChatSession{}, err
	}
	return r.GetSession(txn, id)
}

// SetCurrentSession stores a new session and makes it the user's current one.
// The previous session, if any, stays reachable through the history index.
func (r SessionRepository) SetCurrentSession(txn *badger.Txn, session domain.ChatSession) error {
	if err := r.StoreSession(txn, session); err != nil {
		return err
	}
	if err := set(txn, sessionHistoryKey(session), session.ID); err != nil {
		return err
	}
	return set(txn, currentSessionKey(session.UserID), session.ID)
}

// ListSessions returns every session, most recent activity first.
func (r SessionRepository) ListSessions(txn *badger.Txn) ([]domain.ChatSession, error) {
	var sessions []domain.ChatSession
	err := scan(txn, "sess:", false, func(_ string, s domain.ChatSession) error {
		sessions = append(sessions, s)
		return nil
	})
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].LastMessageAt.After(sessions[j].LastMessageAt)
	})
	return sessions, err
}

// ListUserSessions returns the sessions of one user, oldest first.
func (r SessionRepository) ListUserSessions(txn *badger.Txn, userID string) ([]domain.ChatSession, error) {
	var ids []uuid.UUID
	err := scan(txn, "sesshist:"+userID+":", false, func(_ string, id uuid.UUID) error {
		ids = append(ids, id)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sessions := make([]domain.ChatSession, 0, len(ids))
	for _, id := range ids {
		s, err := r.GetSession(txn, id)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// RecordActivity is called once per appended message, inside the transaction that
// stores the message. Only member-authored activity raises the admin unread counter.
func (r SessionRepository) RecordActivity(txn *badger.Txn, id uuid.UUID, preview string, authorRole domain.Role, at time.Time) (domain.ChatSession, error) {
	session, err := r.GetSession(txn, id)
	if err != nil {
		return domain.ChatSession{}, err
	}
	session.LastMessagePreview = preview
	session.LastMessageAt = at
	session.NextSeq++
	if authorRole == domain.RoleMember {
		session.UnreadCountForAdmin++
	}
	return session, r.StoreSession(txn, session)
}
