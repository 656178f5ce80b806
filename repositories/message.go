package repositories

import (
	"fmt"
	"log/slog"
	"nexus-mail/domain"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IMessageRepository interface {
	StoreMessage(txn *badger.Txn, message DiskMessage) error
	GetMessage(txn *badger.Txn, id uuid.UUID) (DiskMessage, error)
	DeleteMessage(txn *badger.Txn, id uuid.UUID) error
	ListMessages(txn *badger.Txn) ([]DiskMessage, error)
	GetFlags(txn *badger.Txn, id uuid.UUID, viewerID string) (ViewerFlags, error)
	SetFlags(txn *badger.Txn, id uuid.UUID, viewerID string, flags ViewerFlags) error
	ListFlags(txn *badger.Txn, id uuid.UUID) (map[string]ViewerFlags, error)
	FlagsByMessage(txn *badger.Txn, messages []DiskMessage, viewerID string) (map[uuid.UUID]ViewerFlags, error)
}

type MessageRepository struct {
	log *slog.Logger
}

func NewMessageRepository(log *slog.Logger) MessageRepository {
	return MessageRepository{log: log}
}

// DiskMessage is the single stored record behind a mailbox message.
// A broadcast is one DiskMessage whatever the number of viewers.
type DiskMessage struct {
	ID              uuid.UUID
	SenderID        string
	RecipientTarget string
	Subject         string
	Content         string
	Kind            domain.MessageKind
	Priority        domain.Priority
	CreatedAt       time.Time
	Tags            []string
	ScheduledFor    *time.Time
}

// ViewerFlags is the read/starred state of one message for one viewer.
// Missing flags mean unread and not starred.
type ViewerFlags struct {
	Read    bool
	Starred bool
}

// messageKey is formatted as "msg:{timestamp_padded}:{uuid}".
// The 19-digit zero padding keeps lexicographical order chronological,
// the uuid separates two messages created in the same nanosecond.
func messageKey(m DiskMessage) string {
	return fmt.Sprintf("msg:%019d:%s", m.CreatedAt.UnixNano(), m.ID)
}

func messageIndexKey(id uuid.UUID) string {
	return "msgidx:" + id.String()
}

func flagPrefix(id uuid.UUID) string {
	return fmt.Sprintf("flag:%s:", id)
}

func flagKey(id uuid.UUID, viewerID string) string {
	return flagPrefix(id) + viewerID
}

// StoreMessage writes the record and its id index.
func (r MessageRepository) StoreMessage(txn *badger.Txn, message DiskMessage) error {
	key := messageKey(message)
	if err := set(txn, key, message); err != nil {
		return err
	}
	return set(txn, messageIndexKey(message.ID), key)
}

func (r MessageRepository) GetMessage(txn *badger.Txn, id uuid.UUID) (DiskMessage, error) {
	key, err := get[string](txn, messageIndexKey(id))
	if err != nil {
		return DiskMessage{}, err
	}
	return get[DiskMessage](txn, key)
}

// DeleteMessage removes the record, its index and every viewer flag.
func (r MessageRepository) DeleteMessage(txn *badger.Txn, id uuid.UUID) error {
	key, err := get[string](txn, messageIndexKey(id))
	if err != nil {
		return err
	}
	if err = txn.Delete([]byte(key)); err != nil {
		return err
	}
	if err = txn.Delete([]byte(messageIndexKey(id))); err != nil {
		return err
	}
	if err = deletePrefix(txn, flagPrefix(id)); err != nil {
		return err
	}
	r.log.Debug("Message record deleted", "id", id)
	return nil
}

// ListMessages returns every stored message, newest first.
func (r MessageRepository) ListMessages(txn *badger.Txn) ([]DiskMessage, error) {
	var messages []DiskMessage
	err := scan(txn, "msg:", true, func(_ string, m DiskMessage) error {
		messages = append(messages, m)
		return nil
	})
	return messages, err
}

func (r MessageRepository) GetFlags(txn *badger.Txn, id uuid.UUID, viewerID string) (ViewerFlags, error) {
	ok, err := exists(txn, flagKey(id, viewerID))
	if err != nil || !ok {
		return ViewerFlags{}, err
	}
	return get[ViewerFlags](txn, flagKey(id, viewerID))
}

// SetFlags drops the key when flags are back to their zero value.
func (r MessageRepository) SetFlags(txn *badger.Txn, id uuid.UUID, viewerID string, flags ViewerFlags) error {
	if flags == (ViewerFlags{}) {
		return txn.Delete([]byte(flagKey(id, viewerID)))
	}
	return set(txn, flagKey(id, viewerID), flags)
}

// ListFlags returns the flags of every viewer who has touched the message.
func (r MessageRepository) ListFlags(txn *badger.Txn, id uuid.UUID) (map[string]ViewerFlags, error) {
	prefix := flagPrefix(id)
	flags := make(map[string]ViewerFlags)
	err := scan(txn, prefix, false, func(key string, f ViewerFlags) error {
		flags[key[len(prefix):]] = f
		return nil
	})
	return flags, err
}

// FlagsByMessage loads the flags of one viewer for a batch of messages.
func (r MessageRepository) FlagsByMessage(txn *badger.Txn, messages []DiskMessage, viewerID string) (map[uuid.UUID]ViewerFlags, error) {
	out := make(map[uuid.UUID]ViewerFlags, len(messages))
	for _, id := range lo.Map(messages, func(m DiskMessage, _ int) uuid.UUID { return m.ID }) {
		flags, err := r.GetFlags(txn, id, viewerID)
		if err != nil {
			return nil, err
		}
		out[id] = flags
	}
	return out, nil
}
