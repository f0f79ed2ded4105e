package bot

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"daily-tracker/internal/alarm"
	"daily-tracker/internal/model"
	"daily-tracker/internal/report"
	"daily-tracker/internal/service"
)

const (
	ledgerLimit = 15
	tokenTTL    = 30 * 24 * time.Hour
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if msg.Voice != nil {
		return b.handleVoice(ctx, msg)
	}

	if !msg.IsCommand() && isCancelInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	}

	if msg.IsCommand() {
		b.log.Info(ctx, "command", "telegram_id", msg.From.ID, "command", msg.Command())
		return b.handleCommand(ctx, msg)
	}

	if handled, err := b.handleMenuAlias(ctx, msg); handled {
		return err
	}

	if b.getConversation(msg.From.ID) != nil {
		return b.handleConversation(ctx, msg)
	}

	// Free text is a new task in task mode, like typing into the task field.
	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}
	if s.View().Settings.AppMode == model.AppModeTasks {
		return b.addTask(ctx, msg.Chat.ID, s, msg.Text)
	}
	return b.sendText(msg.Chat.ID, "Use /expense or /income to record a transaction, or /help for all commands.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "tasks":
		return b.handleTasks(ctx, msg)
	case "add":
		return b.handleAdd(ctx, msg)
	case "budget":
		return b.handleBudget(ctx, msg)
	case "expense":
		return b.startTransaction(ctx, msg, model.TransactionExpense)
	case "income":
		return b.startTransaction(ctx, msg, model.TransactionIncome)
	case "report":
		return b.handleReport(ctx, msg)
	case "mode":
		return b.handleMode(ctx, msg)
	case "theme":
		return b.handleTheme(ctx, msg)
	case "name":
		return b.handleName(ctx, msg)
	case "email":
		return b.handleEmail(ctx, msg)
	case "ringtone":
		return b.handleRingtone(msg)
	case "token":
		return b.handleToken(ctx, msg)
	case "login":
		return b.handleLogin(ctx, msg)
	case "logout":
		return b.handleLogout(ctx, msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ Input cancelled.")
	default:
		return b.sendText(msg.Chat.ID, "Unknown command. See /help.")
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	switch strings.TrimSpace(strings.ToLower(msg.Text)) {
	case strings.ToLower(menuLabelNewTask):
		return true, b.handleAdd(ctx, msg)
	case strings.ToLower(menuLabelTasks):
		return true, b.handleTasks(ctx, msg)
	case strings.ToLower(menuLabelBudget):
		return true, b.handleBudget(ctx, msg)
	case strings.ToLower(menuLabelReport):
		return true, b.handleReport(ctx, msg)
	case strings.ToLower(menuLabelHelp):
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}

	name := s.View().Settings.DisplayName
	if strings.TrimSpace(name) == "" || name == model.DefaultSettings().DisplayName {
		if first := strings.TrimSpace(msg.From.FirstName); first != "" {
			name = first
		}
	}

	text := fmt.Sprintf("👋 Hi, %s!\n<b>I keep your tasks and your budget in one place.</b>\n\n%s",
		escape(name), helpText(b.recognizer != nil))
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	return b.sendText(msg.Chat.ID, "ℹ️ <b>Commands</b>\n"+helpText(b.recognizer != nil))
}

func helpText(voiceEnabled bool) string {
	text := "• /tasks - task list with buttons to complete or delete\n" +
		"• /add &lt;text&gt; - add a task (plain text works too in task mode)\n" +
		"• /budget - balance and latest transactions\n" +
		"• /expense, /income - record a transaction step by step\n" +
		"• /report - activity report\n" +
		"• /mode [tasks|budget], /theme [light|dark] - switch mode or theme\n" +
		"• /name &lt;name&gt;, /email &lt;address&gt; - edit your profile\n" +
		"• /ringtone [name] - listen to a ringtone\n" +
		"• /token, /login &lt;token&gt;, /logout - use the same data in several chats\n" +
		"• /cancel - cancel current input"
	if voiceEnabled {
		text += "\n🎙 Send a voice message to add a task."
	}
	return text
}

func (b *Bot) handleTasks(ctx context.Context, msg *tgbotapi.Message) error {
	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}
	return b.sendTaskList(msg.Chat.ID, s)
}

func (b *Bot) sendTaskList(chatID int64, s *service.Session) error {
	view := s.View()
	text := b.reportSvc.TaskList(view, time.Now())
	if len(view.Tasks) == 0 {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, taskKeyboard(view.Tasks))
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.CommandArguments())
	if text == "" {
		b.setConversation(msg.From.ID, &conversationState{stage: stageTaskText})
		return b.sendWithReplyMarkup(msg.Chat.ID, "✏️ What needs to be done?", cancelKeyboard())
	}
	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}
	return b.addTask(ctx, msg.Chat.ID, s, text)
}

func (b *Bot) addTask(ctx context.Context, chatID int64, s *service.Session, text string) error {
	return b.taskAddedReply(chatID, text, s.Gateway().AddTask(ctx, text))
}

func (b *Bot) taskAddedReply(chatID int64, text string, err error) error {
	switch {
	case err == nil:
		return b.sendText(chatID, fmt.Sprintf("➕ Added: %s", escape(strings.TrimSpace(text))))
	case errors.Is(err, service.ErrEmptyText):
		return b.sendText(chatID, "The task text is empty.")
	default:
		return b.sendText(chatID, "⚠️ Could not save the task, please try again.")
	}
}

func (b *Bot) handleBudget(ctx context.Context, msg *tgbotapi.Message) error {
	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}
	return b.sendText(msg.Chat.ID, b.reportSvc.Ledger(s.View(), time.Now(), ledgerLimit))
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}
	return b.sendText(msg.Chat.ID, b.reportSvc.ActivityReport(s.View(), time.Now()))
}

func (b *Bot) handleMode(ctx context.Context, msg *tgbotapi.Message) error {
	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}

	mode := nextMode(s.Settings().Current().AppMode)
	if arg := msg.CommandArguments(); strings.TrimSpace(arg) != "" {
		if mode, err = model.ParseAppMode(arg); err != nil {
			return b.sendText(msg.Chat.ID, "Mode must be tasks or budget.")
		}
	}
	b.saveSettings(ctx, s, model.SettingsPatch{AppMode: &mode})

	if mode == model.AppModeBudget {
		return b.sendText(msg.Chat.ID, "💰 Budget tracker mode. Use /expense and /income to record money.")
	}
	return b.sendText(msg.Chat.ID, "📝 Task tracker mode. Send any text to add a task.")
}

func (b *Bot) handleTheme(ctx context.Context, msg *tgbotapi.Message) error {
	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}

	theme := nextTheme(s.Settings().Current().Theme)
	if arg := msg.CommandArguments(); strings.TrimSpace(arg) != "" {
		if theme, err = model.ParseTheme(arg); err != nil {
			return b.sendText(msg.Chat.ID, "Theme must be light or dark.")
		}
	}
	b.saveSettings(ctx, s, model.SettingsPatch{Theme: &theme})
	return b.sendText(msg.Chat.ID, fmt.Sprintf("%s Theme: %s", theme.Presentation().Icon, theme))
}

func (b *Bot) handleName(ctx context.Context, msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		return b.sendText(msg.Chat.ID, "Usage: /name Alex")
	}
	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}
	b.saveSettings(ctx, s, model.SettingsPatch{DisplayName: &name})
	return b.sendText(msg.Chat.ID, fmt.Sprintf("👤 Display name: %s", escape(name)))
}

func (b *Bot) handleEmail(ctx context.Context, msg *tgbotapi.Message) error {
	email := strings.TrimSpace(msg.CommandArguments())
	if email != "" && !looksLikeEmail(email) {
		return b.sendText(msg.Chat.ID, "That does not look like an email address.")
	}
	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}
	b.saveSettings(ctx, s, model.SettingsPatch{Email: &email})
	if email == "" {
		return b.sendText(msg.Chat.ID, "📧 Reminder email cleared.")
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf("📧 Reminder email: %s", escape(email)))
}

// saveSettings writes the patch. A failed write is only logged; the chat
// already shows the new value.
func (b *Bot) saveSettings(ctx context.Context, s *service.Session, patch model.SettingsPatch) {
	if err := s.Settings().Save(ctx, patch); err != nil {
		b.log.Warn(ctx, "settings not persisted", "uid", s.UserID(), "err", err)
	}
}

func (b *Bot) handleRingtone(msg *tgbotapi.Message) error {
	name := strings.TrimSpace(msg.CommandArguments())
	if name == "" {
		var sb strings.Builder
		sb.WriteString("🔔 <b>Ringtones</b>\n")
		for _, n := range alarm.Names() {
			marker := "•"
			if n == b.config.Ringtone {
				marker = "✓"
			}
			sb.WriteString(fmt.Sprintf("%s %s\n", marker, escape(n)))
		}
		sb.WriteString("\nUsage: /ringtone High-Low")
		return b.sendText(msg.Chat.ID, sb.String())
	}

	match, ok := matchRingtone(name)
	if !ok {
		return b.sendText(msg.Chat.ID, "Unknown ringtone. Send /ringtone to see the list.")
	}
	if match == alarm.None {
		return b.sendText(msg.Chat.ID, "🔕 None is silent.")
	}
	return b.sendRingtone(msg.Chat.ID, match, "🔔 "+match)
}

func (b *Bot) sendRingtone(chatID int64, name, caption string) error {
	if name == alarm.None {
		return nil
	}
	data, err := alarm.Render(name, 3)
	if err != nil {
		return err
	}
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FileBytes{Name: "ringtone.wav", Bytes: data})
	audio.Title = name
	audio.Caption = caption
	_, err = b.api.Send(audio)
	return err
}

func (b *Bot) handleToken(ctx context.Context, msg *tgbotapi.Message) error {
	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}
	token, err := b.provider.IssueToken(s.UserID(), tokenTTL)
	if err != nil {
		return err
	}
	return b.sendText(msg.Chat.ID, fmt.Sprintf(
		"🔑 Send this in another chat within 30 days to use the same data:\n<code>/login %s</code>", escape(token)))
}

func (b *Bot) handleLogin(ctx context.Context, msg *tgbotapi.Message) error {
	token := strings.TrimSpace(msg.CommandArguments())
	if token == "" {
		return b.sendText(msg.Chat.ID, "Usage: /login &lt;token&gt;")
	}
	uid, err := b.provider.SignInWithCustomToken(ctx, token)
	if err != nil {
		b.log.Warn(ctx, "login rejected", "telegram_id", msg.From.ID, "err", err)
		return b.sendText(msg.Chat.ID, "⛔️ The token is invalid or expired.")
	}

	if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
		return err
	}
	if err := b.userRepo.SetAuthToken(ctx, msg.From.ID, token); err != nil {
		return err
	}
	if _, err := b.sessions.Open(sessionKey(msg.From.ID), uid); err != nil {
		return err
	}
	b.clearConversation(msg.From.ID)
	b.clearConfirmation(msg.From.ID)
	return b.sendText(msg.Chat.ID, "✅ Signed in. /tasks and /budget now show the linked data.")
}

func (b *Bot) handleLogout(ctx context.Context, msg *tgbotapi.Message) error {
	if _, err := b.ensureUser(ctx, msg.From, msg.Chat.ID); err != nil {
		return err
	}
	if err := b.userRepo.SetAuthToken(ctx, msg.From.ID, ""); err != nil {
		return err
	}
	b.sessions.Close(sessionKey(msg.From.ID))
	return b.sendText(msg.Chat.ID, "👋 Signed out. This chat is back to its own data.")
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}
	action, taskID, ok := parseCallback(cb.Data)
	if !ok {
		b.ack(ctx, cb, "")
		return nil
	}
	b.log.Info(ctx, "callback", "telegram_id", cb.From.ID, "action", action, "task", taskID)

	chatID := cb.Message.Chat.ID
	_, s, err := b.userSession(ctx, cb.From, chatID)
	if err != nil {
		b.ack(ctx, cb, "")
		return nil
	}

	switch action {
	case cbToggle:
		b.ack(ctx, cb, "")
		return b.changeTask(chatID, s, func() error { return s.Gateway().ToggleTask(ctx, taskID) })
	case cbDelete:
		b.ack(ctx, cb, "")
		task, found := findTask(s.View().Tasks, taskID)
		if !found {
			return b.sendText(chatID, "Task not found.")
		}
		b.setConfirmation(cb.From.ID, taskID)
		return b.sendWithReplyMarkup(chatID,
			fmt.Sprintf("Delete task «%s»?", escape(task.Text)), confirmDeleteKeyboard(taskID))
	case cbConfirm:
		b.ack(ctx, cb, "")
		pending, ok := b.getConfirmation(cb.From.ID)
		b.clearConfirmation(cb.From.ID)
		if !ok || pending != taskID {
			return nil
		}
		return b.changeTask(chatID, s, func() error { return s.Gateway().DeleteTask(ctx, taskID) })
	case cbCancel:
		b.clearConfirmation(cb.From.ID)
		b.ack(ctx, cb, "Cancelled")
		return nil
	}
	return nil
}

// changeTask runs a toggle or delete and re-sends the list once the change
// has come back from the store.
func (b *Bot) changeTask(chatID int64, s *service.Session, change func() error) error {
	changed, stop := watchTasks(s)
	defer stop()

	switch err := change(); {
	case errors.Is(err, service.ErrTaskNotFound):
		return b.sendText(chatID, "Task not found or already deleted.")
	case err != nil:
		return b.sendText(chatID, "⚠️ Could not update the task, please try again.")
	}

	select {
	case <-changed:
	case <-time.After(syncTimeout):
	}
	return b.sendTaskList(chatID, s)
}

// viewSource is the part of a session the task watcher needs.
type viewSource interface {
	View() report.View
	OnChange(fn func(report.View)) (cancel func())
}

// watchTasks signals once the task list differs from the one seen when it
// was called. Other view changes are ignored.
func watchTasks(src viewSource) (<-chan struct{}, func()) {
	before := src.View().Tasks
	changed := make(chan struct{}, 1)
	check := func(tasks []model.Task) {
		if slices.Equal(tasks, before) {
			return
		}
		select {
		case changed <- struct{}{}:
		default:
		}
	}
	stop := src.OnChange(func(v report.View) { check(v.Tasks) })
	// A snapshot may have landed between reading before and registering.
	check(src.View().Tasks)
	return changed, stop
}
