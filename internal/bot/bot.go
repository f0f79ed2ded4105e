package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"daily-tracker/internal/config"
	"daily-tracker/internal/identity"
	"daily-tracker/internal/logging"
	"daily-tracker/internal/model"
	"daily-tracker/internal/repository"
	"daily-tracker/internal/service"
	"daily-tracker/internal/voice"
)

// syncTimeout bounds how long a command waits for a fresh session's first
// snapshots before answering with what it has.
const syncTimeout = 3 * time.Second

var errNotSignedIn = errors.New("not signed in")

// Bot aggregates Telegram API with services.
type Bot struct {
	api        *tgbotapi.BotAPI
	userRepo   *repository.UserRepository
	sessions   *service.SessionManager
	reportSvc  *service.ReportService
	provider   *identity.LocalProvider
	recognizer voice.Recognizer
	config     *config.Config
	log        logging.Logger

	mu            sync.Mutex
	conversations map[int64]*conversationState
	confirmations map[int64]string
	adapters      map[int64]*voice.Adapter
}

func New(
	cfg *config.Config,
	userRepo *repository.UserRepository,
	sessions *service.SessionManager,
	reportSvc *service.ReportService,
	provider *identity.LocalProvider,
	recognizer voice.Recognizer,
	log logging.Logger,
) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Info(context.Background(), "bot authorized", "account", api.Self.UserName)

	return &Bot{
		api:           api,
		userRepo:      userRepo,
		sessions:      sessions,
		reportSvc:     reportSvc,
		provider:      provider,
		recognizer:    recognizer,
		config:        cfg,
		log:           log,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]string),
		adapters:      make(map[int64]*voice.Adapter),
	}, nil
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	b.log.Info(ctx, "start polling updates")

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.CallbackQuery != nil:
			if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
				b.log.Error(ctx, "handle callback", "err", err)
			}
		case update.Message != nil:
			if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
				continue
			}
			if err := b.handleMessage(ctx, update.Message); err != nil {
				b.log.Error(ctx, "handle message", "err", err)
			}
		}
	}

	return nil
}

func sessionKey(telegramID int64) string {
	return "telegram:" + strconv.FormatInt(telegramID, 10)
}

// session returns the synced session of a chat, signing the user in first
// when needed. A failed sign-in is retried on the next message with a fresh
// bootstrap.
func (b *Bot) session(ctx context.Context, user *model.User) (*service.Session, error) {
	key := sessionKey(user.TelegramID)
	if s, ok := b.sessions.Get(key); ok {
		return s, nil
	}

	creds := identity.Credentials{Token: user.AuthToken, InstallKey: key}
	if creds.Token == "" && b.config.InitialAuthToken != "" && user.TelegramID == b.config.OwnerTelegramID {
		creds.Token = b.config.InitialAuthToken
	}

	boot := identity.NewBootstrap(b.provider, creds, b.log.With("owner", key))
	state, err := boot.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if !state.Usable() {
		return nil, fmt.Errorf("%w: %w", errNotSignedIn, state.Err)
	}

	s, err := b.sessions.Open(key, state.UserID)
	if err != nil {
		return nil, err
	}
	waitCtx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()
	if err := s.WaitSynced(waitCtx); err != nil {
		b.log.Warn(ctx, "session not synced yet", "owner", key, "err", err)
	}
	return s, nil
}

func (b *Bot) ensureUser(ctx context.Context, from *tgbotapi.User, chatID int64) (*model.User, error) {
	return b.userRepo.UpsertFromTelegram(ctx, from.ID, chatID, from.FirstName, from.LastName, from.UserName)
}

// userSession resolves the sender and their session, replying with the
// reason when the session is unavailable.
func (b *Bot) userSession(ctx context.Context, from *tgbotapi.User, chatID int64) (*model.User, *service.Session, error) {
	user, err := b.ensureUser(ctx, from, chatID)
	if err != nil {
		return nil, nil, err
	}
	s, err := b.session(ctx, user)
	if err != nil {
		b.log.Error(ctx, "open session", "telegram_id", from.ID, "err", err)
		_ = b.sendText(chatID, "⚠️ Sign-in failed, your data is not available right now. Try again later or /logout.")
		return user, nil, err
	}
	return user, s, nil
}

// SendReports sends the activity report to every known user. With alarm set
// the configured ringtone is attached.
func (b *Bot) SendReports(ctx context.Context, alarm bool) error {
	users, err := b.userRepo.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now()
	for i := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		user := &users[i]
		chatID := user.ChatID
		if chatID == 0 {
			chatID = user.TelegramID
		}
		s, err := b.session(ctx, user)
		if err != nil {
			b.log.Error(ctx, "report session", "telegram_id", user.TelegramID, "err", err)
			continue
		}
		text := b.reportSvc.ActivityReport(s.View(), now)
		if err := b.sendText(chatID, text); err != nil {
			b.log.Error(ctx, "send report", "telegram_id", user.TelegramID, "err", err)
			continue
		}
		if alarm {
			if err := b.sendRingtone(chatID, b.config.Ringtone, "⏰ Daily reminder"); err != nil {
				b.log.Error(ctx, "send alarm", "telegram_id", user.TelegramID, "err", err)
			}
		}
	}
	return nil
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) ack(ctx context.Context, cb *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, text)); err != nil {
		b.log.Warn(ctx, "callback ack", "err", err)
	}
}

func (b *Bot) getConfirmation(userID int64) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.confirmations[userID]
	return id, ok
}

func (b *Bot) setConfirmation(userID int64, taskID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = taskID
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func (b *Bot) voiceAdapter(userID int64) *voice.Adapter {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.adapters[userID]
	if !ok {
		a = voice.NewAdapter(b.recognizer, b.log.With("telegram_id", userID))
		b.adapters[userID] = a
	}
	return a
}

func escape(s string) string {
	return html.EscapeString(s)
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "cancel"
}
