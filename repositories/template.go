package repositories

import (
	"fmt"
	"nexus-mail/domain"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

type ITemplateRepository interface {
	StoreTemplate(txn *badger.Txn, template domain.Template) error
	GetTemplate(txn *badger.Txn, id uuid.UUID) (domain.Template, error)
	DeleteTemplate(txn *badger.Txn, id uuid.UUID) error
	ListTemplates(txn *badger.Txn) ([]domain.Template, error)
}

type TemplateRepository struct{}

func NewTemplateRepository() TemplateRepository {
	return TemplateRepository{}
}

func templateKey(t domain.Template) string {
	return fmt.Sprintf("tpl:%019d:%s", t.CreatedAt.UnixNano(), t.ID)
}

func templateIndexKey(id uuid.UUID) string {
	return "tplidx:" + id.String()
}

func (r TemplateRepository) StoreTemplate(txn *badger.Txn, template domain.Template) error {
	key := templateKey(template)
	if err := set(txn, key, template); err != nil {
		return err
	}
	return set(txn, templateIndexKey(template.ID), key)
}

func (r TemplateRepository) GetTemplate(txn *badger.Txn, id uuid.UUID) (domain.Template, error) {
	key, err := get[string](txn, templateIndexKey(id))
	if err != nil {
		return domain.Template{}, err
	}
	return get[domain.Template](txn, key)
}

func (r TemplateRepository) DeleteTemplate(txn *badger.Txn, id uuid.UUID) error {
	key, err := get[string](txn, templateIndexKey(id))
	if err != nil {
		return err
	}
	if err = txn.Delete([]byte(key)); err != nil {
		return err
	}
	return txn.Delete([]byte(templateIndexKey(id)))
}

// ListTemplates returns templates in creation order.
func (r TemplateRepository) ListTemplates(txn *badger.Txn) ([]domain.Template, error) {
	var templates []domain.Template
	err := scan(txn, "tpl:", false, func(_ string, t domain.Template) error {
		templates = append(templates, t)
		return nil
	})
	return templates, err
}
