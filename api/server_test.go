package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"nexus-mail/assistant"
	"nexus-mail/directory"
	"nexus-mail/domain"
	"nexus-mail/domain/event"
	"nexus-mail/observability"
	"nexus-mail/repositories"
	"nexus-mail/runtime"
	"nexus-mail/runtime/workers"
	"nexus-mail/services"
	"nexus-mail/storage"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R', 0, 0, 0, 1}

type testEnv struct {
	handler  http.Handler
	registry *runtime.Registry
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelError)
	db, err := storage.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dir := directory.Default()
	registry := runtime.NewRegistry()
	fanout := workers.NewEventFanout(log, registry, 100, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = fanout.Run(ctx) }()

	mailbox := services.NewMailboxService(log, db, dir, repositories.NewMessageRepository(log), fanout)
	templates := services.NewTemplateService(log, db, repositories.NewTemplateRepository())
	chat := services.NewChatService(log, db, dir, repositories.NewSessionRepository(),
		repositories.NewChatMessageRepository(), nil, fanout, 1024)
	gateway := assistant.NewGateway(log, nil, time.Second)

	monitor := observability.NewMonitoringManager(log)
	monitor.RecordChannels([]observability.ChannelStats{{Name: "event_fanout", Capacity: 100}})

	server := NewServer(log, dir, mailbox, templates, chat, gateway, registry, 16, 1024).WithMonitor(monitor)
	return testEnv{handler: server.Routes(), registry: registry}
}

func (e testEnv) do(t *testing.T, method, path, actorID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	request := httptest.NewRequest(method, path, reader)
	if actorID != "" {
		request.Header.Set(ActorHeader, actorID)
	}
	recorder := httptest.NewRecorder()
	e.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody[T any](t *testing.T, recorder *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &out))
	return out
}

func broadcastBody(subject string) map[string]any {
	return map[string]any{
		"recipientTarget": domain.Everyone,
		"subject":         subject,
		"content":         "Servers will be down from 22:00.",
		"kind":            domain.KindBroadcast,
		"priority":        domain.PriorityHigh,
	}
}

func TestServer_Ping_Needs_No_Actor(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	recorder := env.do(t, http.MethodGet, "/ping", "", nil)

	req.Equal(http.StatusOK, recorder.Code)
	req.Equal("pong", recorder.Body.String())
}

func TestServer_Rejects_Missing_Or_Unknown_Actor(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	req.Equal(http.StatusUnauthorized, env.do(t, http.MethodGet, "/messages", "", nil).Code)
	req.Equal(http.StatusUnauthorized, env.do(t, http.MethodGet, "/messages", "user-42", nil).Code)

	users := decodeBody[[]domain.User](t, env.do(t, http.MethodGet, "/users", "user-1", nil))
	req.Len(users, 3)
}

func TestServer_Mailbox_Flow(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	// Admin broadcasts
	recorder := env.do(t, http.MethodPost, "/messages", "admin-1", broadcastBody("Maintenance"))
	req.Equal(http.StatusCreated, recorder.Code)
	sent := decodeBody[domain.Message](t, recorder)
	req.Equal("Maintenance", sent.Subject)

	// Alice sees it unread
	count := decodeBody[countResponse](t, env.do(t, http.MethodGet, "/messages/unread-count", "user-1", nil))
	req.Equal(1, count.Count)
	messages := decodeBody[[]domain.Message](t, env.do(t, http.MethodGet, "/messages?filter=unread", "user-1", nil))
	req.Len(messages, 1)

	// Alice reads and stars it
	req.Equal(http.StatusNoContent, env.do(t, http.MethodPost, "/messages/"+sent.ID.String()+"/read", "user-1", nil).Code)
	star := decodeBody[starResponse](t, env.do(t, http.MethodPost, "/messages/"+sent.ID.String()+"/star", "user-1", nil))
	req.True(star.Starred)
	got := decodeBody[domain.Message](t, env.do(t, http.MethodGet, "/messages/"+sent.ID.String(), "user-1", nil))
	req.True(got.IsRead)
	req.True(got.IsStarred)

	// Bob is unaffected, then reads everything
	count = decodeBody[countResponse](t, env.do(t, http.MethodGet, "/messages/unread-count", "user-2", nil))
	req.Equal(1, count.Count)
	changed := decodeBody[countResponse](t, env.do(t, http.MethodPost, "/messages/read-all", "user-2", nil))
	req.Equal(1, changed.Count)

	// Search goes through the query string
	found := decodeBody[[]domain.Message](t, env.do(t, http.MethodGet, "/messages?q=servers", "user-2", nil))
	req.Len(found, 1)

	// Only the sender or an admin recalls
	req.Equal(http.StatusForbidden, env.do(t, http.MethodDelete, "/messages/"+sent.ID.String(), "user-1", nil).Code)
	req.Equal(http.StatusNoContent, env.do(t, http.MethodDelete, "/messages/"+sent.ID.String(), "admin-1", nil).Code)
	req.Equal(http.StatusNotFound, env.do(t, http.MethodDelete, "/messages/"+sent.ID.String(), "admin-1", nil).Code)
}

func TestServer_Mailbox_Errors(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	req.Equal(http.StatusForbidden, env.do(t, http.MethodPost, "/messages", "user-1", broadcastBody("Party")).Code)
	req.Equal(http.StatusBadRequest, env.do(t, http.MethodPost, "/messages", "admin-1", broadcastBody("  ")).Code)
	req.Equal(http.StatusBadRequest, env.do(t, http.MethodPost, "/messages", "admin-1", "{not json").Code)
	req.Equal(http.StatusBadRequest, env.do(t, http.MethodGet, "/messages?filter=archived", "user-1", nil).Code)
	req.Equal(http.StatusBadRequest, env.do(t, http.MethodGet, "/messages/not-a-uuid", "user-1", nil).Code)
	req.Equal(http.StatusNotFound, env.do(t, http.MethodGet, "/messages/"+"00000000-0000-0000-0000-000000000001", "user-1", nil).Code)

	recorder := env.do(t, http.MethodGet, "/messages/stats", "user-1", nil)
	req.Equal(http.StatusForbidden, recorder.Code)
	req.Equal("admin only", decodeBody[errorResponse](t, recorder).Error)

	stats := decodeBody[domain.MailboxStats](t, env.do(t, http.MethodGet, "/messages/stats", "admin-1", nil))
	req.Equal(3, stats.ActiveUsers)
}

func TestServer_Templates(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	req.Equal(http.StatusForbidden, env.do(t, http.MethodGet, "/templates", "user-1", nil).Code)

	recorder := env.do(t, http.MethodPost, "/templates", "admin-1", map[string]any{
		"name": "Maintenance", "subject": "Scheduled maintenance", "content": "Down tonight.", "priority": "high",
	})
	req.Equal(http.StatusCreated, recorder.Code)
	template := decodeBody[domain.Template](t, recorder)

	templates := decodeBody[[]domain.Template](t, env.do(t, http.MethodGet, "/templates", "admin-1", nil))
	req.Len(templates, 1)

	recorder = env.do(t, http.MethodPost, "/templates/"+template.ID.String()+"/send", "admin-1", map[string]any{
		"recipientTarget": domain.Everyone,
	})
	req.Equal(http.StatusCreated, recorder.Code)

	req.Equal(http.StatusNoContent, env.do(t, http.MethodDelete, "/templates/"+template.ID.String(), "admin-1", nil).Code)
	req.Equal(http.StatusNotFound, env.do(t, http.MethodDelete, "/templates/"+template.ID.String(), "admin-1", nil).Code)

	inbox := decodeBody[[]domain.Message](t, env.do(t, http.MethodGet, "/messages", "user-2", nil))
	req.Len(inbox, 1)
	req.Equal("Scheduled maintenance", inbox[0].Subject)
	req.Equal(domain.PriorityHigh, inbox[0].Priority)
}

func TestServer_Assistant_Fallbacks(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	summary := decodeBody[summarizeResponse](t, env.do(t, http.MethodPost, "/assistant/summarize", "admin-1", map[string]any{"text": "Quarterly results"}))
	req.Equal(assistant.FallbackSummary("Quarterly results"), summary.Summary)

	draft := decodeBody[assistant.Draft](t, env.do(t, http.MethodPost, "/assistant/draft", "admin-1", map[string]any{"topic": "Office move", "tone": "urgent"}))
	req.Equal("[Draft] Announcement: Office move", draft.Subject)
	req.True(strings.HasPrefix(draft.Content, "**URGENT UPDATE**"))

	req.Equal(http.StatusBadRequest, env.do(t, http.MethodPost, "/assistant/draft", "admin-1", map[string]any{"topic": " "}).Code)
}

func TestServer_Chat_Flow(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	recorder := env.do(t, http.MethodPost, "/chat/session", "user-1", nil)
	req.Equal(http.StatusOK, recorder.Code)
	session := decodeBody[domain.ChatSession](t, recorder)
	path := "/chat/sessions/" + session.ID.String()

	req.Equal(http.StatusCreated, env.do(t, http.MethodPost, path+"/messages", "user-1", map[string]any{"content": "VPN is down"}).Code)
	req.Equal(http.StatusForbidden, env.do(t, http.MethodPost, path+"/messages", "user-2", map[string]any{"content": "me too"}).Code)
	req.Equal(http.StatusForbidden, env.do(t, http.MethodGet, path+"/messages", "user-2", nil).Code)

	inbox := decodeBody[[]domain.ChatSession](t, env.do(t, http.MethodGet, "/chat/sessions", "admin-1", nil))
	req.Len(inbox, 1)
	req.Equal(1, inbox[0].UnreadCountForAdmin)

	req.Equal(http.StatusNoContent, env.do(t, http.MethodPost, path+"/read", "admin-1", nil).Code)
	req.Equal(http.StatusForbidden, env.do(t, http.MethodPost, path+"/close", "user-1", nil).Code)
	req.Equal(http.StatusNoContent, env.do(t, http.MethodPost, path+"/close", "admin-1", nil).Code)
	req.Equal(http.StatusConflict, env.do(t, http.MethodPost, path+"/close", "admin-1", nil).Code)
	req.Equal(http.StatusConflict, env.do(t, http.MethodPost, path+"/messages", "user-1", map[string]any{"content": "hello?"}).Code)

	transcript := decodeBody[[]domain.ChatMessage](t, env.do(t, http.MethodGet, path+"/messages", "user-1", nil))
	req.Len(transcript, 2)
	req.Equal(domain.ChatSystem, transcript[1].Kind)

	fresh := decodeBody[domain.ChatSession](t, env.do(t, http.MethodPost, "/chat/session/new", "user-1", nil))
	req.NotEqual(session.ID, fresh.ID)
	history := decodeBody[[]domain.ChatSession](t, env.do(t, http.MethodGet, "/chat/sessions", "user-1", nil))
	req.Len(history, 2)

	req.Equal(http.StatusNotFound, env.do(t, http.MethodGet, "/chat/sessions/00000000-0000-0000-0000-000000000001/messages", "admin-1", nil).Code)
	req.Equal(http.StatusForbidden, env.do(t, http.MethodPost, "/chat/session", "admin-1", nil).Code)
}

func TestServer_Chat_Image_Upload_And_Download(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	session := decodeBody[domain.ChatSession](t, env.do(t, http.MethodPost, "/chat/session", "user-1", nil))

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("image", "screen.png")
	req.NoError(err)
	_, err = part.Write(pngBytes)
	req.NoError(err)
	req.NoError(form.WriteField("caption", "error screen"))
	req.NoError(form.Close())

	request := httptest.NewRequest(http.MethodPost, "/chat/sessions/"+session.ID.String()+"/images", &body)
	request.Header.Set("Content-Type", form.FormDataContentType())
	request.Header.Set(ActorHeader, "user-1")
	recorder := httptest.NewRecorder()
	env.handler.ServeHTTP(recorder, request)
	req.Equal(http.StatusCreated, recorder.Code)
	message := decodeBody[domain.ChatMessage](t, recorder)
	req.Equal(domain.ChatImage, message.Kind)
	req.Equal("error screen", message.Content)

	download := env.do(t, http.MethodGet, "/attachments/"+message.AttachmentRef, "admin-1", nil)
	req.Equal(http.StatusOK, download.Code)
	req.Equal("image/png", download.Header().Get("Content-Type"))
	req.Equal(pngBytes, download.Body.Bytes())

	req.Equal(http.StatusForbidden, env.do(t, http.MethodGet, "/attachments/"+message.AttachmentRef, "user-2", nil).Code)
	req.Equal(http.StatusNotFound, env.do(t, http.MethodGet, "/attachments/missing", "admin-1", nil).Code)
}

func TestServer_Session_Events_Stream(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)
	httpServer := httptest.NewServer(env.handler)
	defer httpServer.Close()
	session := decodeBody[domain.ChatSession](t, env.do(t, http.MethodPost, "/chat/session", "user-1", nil))
	topic := session.ID.String()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, httpServer.URL+"/chat/sessions/"+topic+"/events", nil)
	req.NoError(err)
	request.Header.Set(ActorHeader, "user-1")
	response, err := httpServer.Client().Do(request)
	req.NoError(err)
	defer response.Body.Close()
	req.Equal(http.StatusOK, response.StatusCode)
	req.Equal("text/event-stream", response.Header.Get("Content-Type"))

	// Wait for the subscription before producing the event
	req.Eventually(func() bool { return len(env.registry.GetSinks(topic)) == 1 }, time.Second, 10*time.Millisecond)
	req.Equal(http.StatusCreated, env.do(t, http.MethodPost, "/chat/sessions/"+topic+"/messages", "admin-1", map[string]any{"content": "We are on it"}).Code)

	lines := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(response.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var eventLine, dataLine string
	timeout := time.After(2 * time.Second)
	for dataLine == "" {
		select {
		case line, ok := <-lines:
			req.True(ok, "stream closed early")
			if strings.HasPrefix(line, "event: ") {
				eventLine = line
			}
			if strings.HasPrefix(line, "data: ") {
				dataLine = line
			}
		case <-timeout:
			req.Fail("no event received")
		}
	}
	req.Equal("event: chat.message", eventLine)
	var message domain.ChatMessage
	req.NoError(json.Unmarshal([]byte(strings.TrimPrefix(dataLine, "data: ")), &message))
	req.Equal("We are on it", message.Content)

	// Disconnecting removes the subscriber
	cancel()
	req.Eventually(func() bool { return len(env.registry.GetSinks(topic)) == 0 }, time.Second, 10*time.Millisecond)
}

func TestServer_Monitoring_Is_Admin_Only(t *testing.T) {
	req := require.New(t)
	env := newTestEnv(t)

	req.Equal(http.StatusForbidden, env.do(t, http.MethodGet, "/monitoring", "user-1", nil).Code)

	recorder := env.do(t, http.MethodGet, "/monitoring", "admin-1", nil)
	req.Equal(http.StatusOK, recorder.Code)
	stats := decodeBody[observability.MonitoringStats](t, recorder)
	req.Len(stats.Channels, 1)
	req.Equal("event_fanout", stats.Channels[0].Name)
	req.Equal(100, stats.Channels[0].Capacity)
}

func TestVisibleMailboxEvent(t *testing.T) {
	req := require.New(t)
	id := uuid.New()

	personal := event.MessageRecalled{ID: id, ActorID: "user-1", RecipientTarget: "user-2"}
	req.True(visibleMailboxEvent(personal, "user-2"))
	req.False(visibleMailboxEvent(personal, "admin-1"))

	broadcast := event.MessageRecalled{ID: id, ActorID: "admin-1", RecipientTarget: domain.Everyone}
	req.True(visibleMailboxEvent(broadcast, "user-1"))

	sent := event.MessageSent{ID: id, SenderID: "user-1", RecipientTarget: "user-2"}
	req.True(visibleMailboxEvent(sent, "user-2"))
	req.False(visibleMailboxEvent(sent, "user-1"))
}
