package repositories

import (
	"fmt"
	"nexus-mail/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type IChatMessageRepository interface {
	StoreChatMessage(txn *badger.Txn, message domain.ChatMessage) error
	ListChatMessages(txn *badger.Txn, sessionID uuid.UUID) ([]domain.ChatMessage, error)
	StoreAttachment(txn *badger.Txn, attachment domain.Attachment) error
	GetAttachment(txn *badger.Txn, ref string) (domain.Attachment, error)
}

type ChatMessageRepository struct{}

func NewChatMessageRepository() ChatMessageRepository {
	return ChatMessageRepository{}
}

// chatKey is formatted as "chat:{session}:{seq_padded}". The sequence comes from the
// session, so key order is insertion order even when two messages share a timestamp.
func chatKey(m domain.ChatMessage) string {
	return fmt.Sprintf("chat:%s:%020d", m.SessionID, m.Seq)
}

// attachmentChunkSize keeps every raw chunk under the 1 MiB value limit badger
// enforces on in-memory stores.
const attachmentChunkSize = 512 << 10

func attachmentKey(ref string) string {
	return "att:" + ref
}

// attachmentChunkKey is formatted as "att:{ref}:{n_padded}" so a prefix scan returns
// the chunks in order.
func attachmentChunkKey(ref string, n int) string {
	return fmt.Sprintf("att:%s:%06d", ref, n)
}

// StoreChatMessage inserts a message or rewrites it in place (read flag only).
func (r ChatMessageRepository) StoreChatMessage(txn *badger.Txn, message domain.ChatMessage) error {
	return set(txn, chatKey(message), message)
}

// ListChatMessages returns the session messages in chronological order.
func (r ChatMessageRepository) ListChatMessages(txn *badger.Txn, sessionID uuid.UUID) ([]domain.ChatMessage, error) {
	var messages []domain.ChatMessage
	err := scan(txn, fmt.Sprintf("chat:%s:", sessionID), false, func(_ string, m domain.ChatMessage) error {
		messages = append(messages, m)
		return nil
	})
	return messages, err
}

// StoreAttachment writes the metadata as a small JSON record and the bytes raw,
// split into chunks.
func (r ChatMessageRepository) StoreAttachment(txn *badger.Txn, attachment domain.Attachment) error {
	if err := set(txn, attachmentKey(attachment.Ref), attachment); err != nil {
		return err
	}
	for n, start := 0, 0; start < len(attachment.Data); n, start = n+1, start+attachmentChunkSize {
		end := min(start+attachmentChunkSize, len(attachment.Data))
		if err := txn.Set([]byte(attachmentChunkKey(attachment.Ref, n)), attachment.Data[start:end]); err != nil {
			return fmt.Errorf("attachment chunk %d: %w", n, err)
		}
	}
	return nil
}

func (r ChatMessageRepository) GetAttachment(txn *badger.Txn, ref string) (domain.Attachment, error) {
	attachment, err := get[domain.Attachment](txn, attachmentKey(ref))
	if err != nil {
		return domain.Attachment{}, err
	}
	prefix := []byte(attachmentKey(ref) + ":")
	options := badger.DefaultIteratorOptions
	options.Prefix = prefix
	it := txn.NewIterator(options)
	defer it.Close()

	data := make([]byte, 0, attachment.Size)
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err = it.Item().Value(func(val []byte) error {
			data = append(data, val...)
			return nil
		}); err != nil {
			return domain.Attachment{}, err
		}
	}
	attachment.Data = data
	return attachment, nil
}
