package services

import (
	"nexus-mail/domain"
	"nexus-mail/errors"
	"nexus-mail/repositories"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func newTemplateService(t *testing.T) *TemplateService {
	t.Helper()
	return NewTemplateService(testLogger(), newTestDB(t), repositories.NewTemplateRepository()).
		WithClock(steppingClock())
}

func TestTemplateService_Save_List_Delete(t *testing.T) {
	req := require.New(t)
	service := newTemplateService(t)

	first, err := service.Save(domain.SaveTemplateCommand{
		Name: " Maintenance ", Subject: "Scheduled maintenance", Content: "Servers go down tonight.", Priority: domain.PriorityHigh,
	})
	req.NoError(err)
	req.Equal("Maintenance", first.Name)
	second, err := service.Save(domain.SaveTemplateCommand{
		Name: "Welcome", Subject: "Welcome aboard", Content: "Glad to have you.", Priority: domain.PriorityLow,
	})
	req.NoError(err)

	templates, err := service.List()
	req.NoError(err)
	req.Equal([]uuid.UUID{first.ID, second.ID}, lo.Map(templates, func(t domain.Template, _ int) uuid.UUID { return t.ID }))

	req.NoError(service.Delete(first.ID))
	_, err = service.Get(first.ID)
	req.ErrorIs(err, errors.ErrNotFound)
	req.ErrorIs(service.Delete(first.ID), errors.ErrNotFound)

	templates, err = service.List()
	req.NoError(err)
	req.Len(templates, 1)
}

func TestTemplateService_Save_Rejects_Blank_Fields(t *testing.T) {
	req := require.New(t)
	service := newTemplateService(t)

	_, err := service.Save(domain.SaveTemplateCommand{Name: "x", Subject: "  ", Content: "body", Priority: domain.PriorityNormal})
	req.ErrorIs(err, errors.ErrValidation)
	_, err = service.Save(domain.SaveTemplateCommand{Name: "x", Subject: "s", Content: "body", Priority: "urgent"})
	req.ErrorIs(err, errors.ErrValidation)

	templates, err := service.List()
	req.NoError(err)
	req.Empty(templates)
}

func TestTemplateService_Compose_Is_A_Copy(t *testing.T) {
	req := require.New(t)
	templates := newTemplateService(t)
	mailbox := newMailboxService(t)

	template, err := templates.Save(domain.SaveTemplateCommand{
		Name: "Maintenance", Subject: "Scheduled maintenance", Content: "Servers go down tonight.", Priority: domain.PriorityHigh,
	})
	req.NoError(err)

	cmd, err := templates.Compose(template.ID, adminID, domain.Everyone, domain.KindBroadcast, []string{"ops"})
	req.NoError(err)
	req.Equal(domain.PriorityHigh, cmd.Priority)
	sent, err := mailbox.Send(cmd)
	req.NoError(err)

	// Deleting the template leaves the sent message intact
	req.NoError(templates.Delete(template.ID))
	got, err := mailbox.Get(aliceID, sent.ID)
	req.NoError(err)
	req.Equal("Scheduled maintenance", got.Subject)
	req.Equal("Servers go down tonight.", got.Content)
	req.Equal([]string{"ops"}, got.Tags)

	_, err = templates.Compose(template.ID, adminID, domain.Everyone, domain.KindBroadcast, nil)
	req.ErrorIs(err, errors.ErrNotFound)
}
