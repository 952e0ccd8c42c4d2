package telegram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"valarify-bot/internal/client/resolver"
	"valarify-bot/internal/services/music"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []tgbotapi.MessageConfig
	err  error
}

func (s *recordingSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		s.sent = append(s.sent, msg)
	}
	return tgbotapi.Message{}, s.err
}

type stubRouter struct {
	reply     string
	addressed bool
	err       error
	panicWith any
	got       []music.InboundMessage
}

func (r *stubRouter) Route(_ context.Context, msg music.InboundMessage) (string, bool, error) {
	if r.panicWith != nil {
		panic(r.panicWith)
	}
	r.got = append(r.got, msg)
	return r.reply, r.addressed, r.err
}

func newTestBot(router Router) (*Bot, *recordingSender, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	s := &recordingSender{}
	return &Bot{sender: s, router: router, username: "Valarify_Bot", logger: zap.New(core)}, s, logs
}

func textUpdate(chatType string, text string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 7,
		Message: &tgbotapi.Message{
			MessageID: 99,
			Chat:      &tgbotapi.Chat{ID: 1234, Type: chatType},
			Text:      text,
		},
	}
}

func TestDispatchPrivateReply(t *testing.T) {
	router := &stubRouter{reply: "Here is the download link: https://x/y", addressed: true}
	bot, sender, _ := newTestBot(router)

	bot.dispatch(context.Background(), textUpdate("private", "bohemian rhapsody"))

	require.Len(t, router.got, 1)
	assert.Equal(t, music.InboundMessage{ChatID: 1234, ChatKind: music.Direct, Text: "bohemian rhapsody"}, router.got[0])

	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(1234), sender.sent[0].ChatID)
	assert.Equal(t, "Here is the download link: https://x/y", sender.sent[0].Text)
	assert.Zero(t, sender.sent[0].ReplyToMessageID)
}

func TestDispatchGroupKinds(t *testing.T) {
	for _, chatType := range []string{"group", "supergroup"} {
		router := &stubRouter{reply: "ok", addressed: true}
		bot, sender, _ := newTestBot(router)

		bot.dispatch(context.Background(), textUpdate(chatType, "@valarify_bot song"))

		require.Len(t, router.got, 1, chatType)
		assert.Equal(t, music.Group, router.got[0].ChatKind)
		require.Len(t, sender.sent, 1)
		assert.Equal(t, 99, sender.sent[0].ReplyToMessageID, "group replies quote the request")
	}
}

func TestDispatchUnaddressedSendsNothing(t *testing.T) {
	router := &stubRouter{addressed: false}
	bot, sender, logs := newTestBot(router)

	bot.dispatch(context.Background(), textUpdate("group", "unrelated chatter"))

	assert.Len(t, router.got, 1)
	assert.Empty(t, sender.sent)
	assert.Zero(t, logs.FilterMessage("update caused error").Len())
}

func TestDispatchIgnoresChannelsAndEmptyText(t *testing.T) {
	router := &stubRouter{reply: "ok", addressed: true}
	bot, sender, _ := newTestBot(router)

	bot.dispatch(context.Background(), textUpdate("channel", "song"))
	bot.dispatch(context.Background(), textUpdate("private", ""))

	assert.Empty(t, router.got)
	assert.Empty(t, sender.sent)
}

func TestDispatchStartCommand(t *testing.T) {
	router := &stubRouter{reply: "unused", addressed: true}
	bot, sender, _ := newTestBot(router)

	update := textUpdate("group", "/start")
	update.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}}
	bot.dispatch(context.Background(), update)

	assert.Empty(t, router.got)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Welcome to the Valarify Bot!", sender.sent[0].Text)
}

func TestDispatchSearchFaultIsLoggedWithoutReply(t *testing.T) {
	router := &stubRouter{err: errors.New("search track: spotify search: 401")}
	bot, sender, logs := newTestBot(router)

	bot.dispatch(context.Background(), textUpdate("private", "song"))

	assert.Empty(t, sender.sent)
	faults := logs.FilterMessage("update caused error").All()
	require.Len(t, faults, 1)
	assert.Equal(t, zapcore.ErrorLevel, faults[0].Level)
	assert.Equal(t, int64(1234), faults[0].ContextMap()["chatID"])
	assert.Equal(t, "search track: spotify search: 401", faults[0].ContextMap()["error"])
}

func TestDispatchRecoversPanics(t *testing.T) {
	router := &stubRouter{panicWith: "nil map"}
	bot, sender, logs := newTestBot(router)

	require.NotPanics(t, func() {
		bot.dispatch(context.Background(), textUpdate("private", "song"))
	})
	assert.Empty(t, sender.sent)
	assert.Equal(t, 1, logs.FilterMessage("update caused error").Len())
}

func TestDispatchSendFailureReachesFaultHook(t *testing.T) {
	router := &stubRouter{reply: "ok", addressed: true}
	bot, sender, logs := newTestBot(router)
	sender.err = errors.New("bad request")

	bot.dispatch(context.Background(), textUpdate("private", "song"))

	faults := logs.FilterMessage("update caused error").All()
	require.Len(t, faults, 1)
	assert.Contains(t, faults[0].ContextMap()["error"], "send reply")
}

func commandUpdate(chatType, text string) tgbotapi.Update {
	update := textUpdate(chatType, text)
	update.Message.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(text)}}
	return update
}

func TestDispatchStartAddressedToThisBot(t *testing.T) {
	router := &stubRouter{reply: "unused", addressed: true}
	bot, sender, _ := newTestBot(router)

	bot.dispatch(context.Background(), commandUpdate("group", "/start@valarify_bot"))

	assert.Empty(t, router.got)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Welcome to the Valarify Bot!", sender.sent[0].Text)
}

func TestDispatchStartForOtherBotGoesToRouter(t *testing.T) {
	router := &stubRouter{addressed: false}
	bot, sender, _ := newTestBot(router)

	bot.dispatch(context.Background(), commandUpdate("group", "/start@otherbot"))

	require.Len(t, router.got, 1)
	assert.Equal(t, "/start@otherbot", router.got[0].Text)
	assert.Empty(t, sender.sent, "group gate stays silent without a mention")
}

type fixedSearcher string

func (f fixedSearcher) Search(context.Context, string) (string, error) { return string(f), nil }

func TestSpawnFinishesMessageAfterShutdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"url":"https://x/y"}`))
	}))
	t.Cleanup(srv.Close)

	router := music.NewService(fixedSearcher("abc"), resolver.NewClient(srv.URL, srv.Client(), nil), "@valarify_bot", nil)
	bot, sender, _ := newTestBot(router)

	ctx, cancel := context.WithCancel(context.Background())
	bot.spawn(ctx, textUpdate("private", "song"))
	time.Sleep(50 * time.Millisecond)
	cancel()
	bot.inflight.Wait()

	sender.mu.Lock()
	defer sender.mu.Unlock()
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Here is the download link: https://x/y", sender.sent[0].Text)
}
