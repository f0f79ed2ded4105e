package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"daily-tracker/internal/alarm"
	"daily-tracker/internal/model"
)

const (
	cbToggle  = "toggle"
	cbDelete  = "delete"
	cbConfirm = "confirm"
	cbCancel  = "cancel"
)

const (
	btnSkip          = "⏭️ Skip"
	btnConfirm       = "✅ Delete"
	btnCancel        = "↩️ Keep"
	btnCancelDialog  = "⏪ Cancel input"
	menuLabelNewTask = "➕ New task"
	menuLabelTasks   = "📋 Tasks"
	menuLabelBudget  = "💰 Budget"
	menuLabelReport  = "📊 Report"
	menuLabelHelp    = "ℹ️ Help"
)

func callbackData(action, taskID string) string {
	return action + ":" + taskID
}

// parseCallback splits "<action>:<task id>".
func parseCallback(data string) (action, taskID string, ok bool) {
	action, taskID, found := strings.Cut(data, ":")
	if !found || taskID == "" {
		return "", "", false
	}
	switch action {
	case cbToggle, cbDelete, cbConfirm, cbCancel:
		return action, taskID, true
	default:
		return "", "", false
	}
}

func shortText(text string, maxLen int) string {
	clean := strings.Join(strings.Fields(text), " ")
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

// taskKeyboard has one row per task: the toggle button and a delete button.
func taskKeyboard(tasks []model.Task) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(tasks))
	for _, task := range tasks {
		mark := "⬜️"
		if task.Completed {
			mark = "✅"
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %s", mark, shortText(task.Text, 28)), callbackData(cbToggle, task.ID)),
			tgbotapi.NewInlineKeyboardButtonData("🗑", callbackData(cbDelete, task.ID)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func confirmDeleteKeyboard(taskID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(btnConfirm, callbackData(cbConfirm, taskID)),
			tgbotapi.NewInlineKeyboardButtonData(btnCancel, callbackData(cbCancel, taskID)),
		),
	)
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelNewTask),
			tgbotapi.NewKeyboardButton(menuLabelTasks),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelBudget),
			tgbotapi.NewKeyboardButton(menuLabelReport),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func skipKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnSkip),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func findTask(tasks []model.Task, id string) (model.Task, bool) {
	for _, t := range tasks {
		if t.ID == id {
			return t, true
		}
	}
	return model.Task{}, false
}

func nextMode(m model.AppMode) model.AppMode {
	if m == model.AppModeBudget {
		return model.AppModeTasks
	}
	return model.AppModeBudget
}

func nextTheme(t model.Theme) model.Theme {
	if t == model.ThemeLight {
		return model.ThemeDark
	}
	return model.ThemeLight
}

func looksLikeEmail(s string) bool {
	at := strings.IndexByte(s, '@')
	return at > 0 && at < len(s)-1 && !strings.ContainsAny(s, " \t\n") &&
		strings.Contains(s[at+1:], ".")
}

// matchRingtone finds a ringtone ignoring case, spaces and hyphens.
func matchRingtone(input string) (string, bool) {
	key := ringtoneKey(input)
	for _, name := range alarm.Names() {
		if ringtoneKey(name) == key {
			return name, true
		}
	}
	return "", false
}

func ringtoneKey(s string) string {
	return strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(s))
}
