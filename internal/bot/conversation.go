package bot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"daily-tracker/internal/model"
	"daily-tracker/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageTaskText
	stageTxDescription
	stageTxAmount
	stageTxVendor
)

type conversationState struct {
	stage conversationStage
	input service.TransactionInput
}

var errBadAmount = errors.New("amount must be a positive number")

// parseAmount accepts "12.5", "12,50" and "$12.50".
func parseAmount(raw string) (float64, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, "$")
	clean = strings.ReplaceAll(clean, " ", "")
	clean = strings.ReplaceAll(clean, ",", ".")
	value, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) || value <= 0 {
		return 0, errBadAmount
	}
	return value, nil
}

func (b *Bot) startTransaction(ctx context.Context, msg *tgbotapi.Message, typ model.TransactionType) error {
	b.clearConfirmation(msg.From.ID)
	b.setConversation(msg.From.ID, &conversationState{
		stage: stageTxDescription,
		input: service.TransactionInput{Type: string(typ)},
	})
	label := "expense"
	if typ == model.TransactionIncome {
		label = "income"
	}
	b.log.Debug(ctx, "transaction dialog started", "telegram_id", msg.From.ID, "type", typ)
	return b.sendWithReplyMarkup(msg.Chat.ID,
		fmt.Sprintf("💸 New %s.\n<b>Step 1:</b> what is it for?", label), cancelKeyboard())
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}
	text := strings.TrimSpace(msg.Text)

	switch state.stage {
	case stageTaskText:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The task text is empty. What needs to be done?", cancelKeyboard())
		}
		_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
		if err != nil {
			return nil
		}
		err = b.commitEntry(msg.From.ID, func() error { return s.Gateway().AddTask(ctx, text) })
		if errors.Is(err, service.ErrWriteFailed) {
			return b.sendWithReplyMarkup(msg.Chat.ID,
				"⚠️ Could not save the task. Send it again to retry or cancel input.", cancelKeyboard())
		}
		return b.taskAddedReply(msg.Chat.ID, text, err)

	case stageTxDescription:
		if text == "" {
			return b.sendWithReplyMarkup(msg.Chat.ID, "Please describe the transaction.", cancelKeyboard())
		}
		state.input.Description = text
		state.stage = stageTxAmount
		return b.sendWithReplyMarkup(msg.Chat.ID, "<b>Step 2:</b> the amount, for example <code>12.50</code>.", cancelKeyboard())

	case stageTxAmount:
		amount, err := parseAmount(text)
		if err != nil {
			return b.sendWithReplyMarkup(msg.Chat.ID, "The amount must be a positive number, for example <code>12.50</code>.", cancelKeyboard())
		}
		state.input.Amount = amount
		state.stage = stageTxVendor
		return b.sendWithReplyMarkup(msg.Chat.ID, "<b>Step 3:</b> vendor or source (or «Skip»).", skipKeyboard())

	case stageTxVendor:
		state.input.Vendor = text
		if strings.EqualFold(text, btnSkip) {
			state.input.Vendor = ""
		}
		input := state.input
		_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
		if err != nil {
			return nil
		}
		err = b.commitEntry(msg.From.ID, func() error { return s.Gateway().AddTransaction(ctx, input) })
		return b.transactionReply(msg.Chat.ID, input, err)
	}

	b.clearConversation(msg.From.ID)
	return nil
}

// commitEntry runs the write collected by a dialog. The dialog stays at its
// current step after a failed write, so the next message retries with the
// input already given.
func (b *Bot) commitEntry(userID int64, write func() error) error {
	err := write()
	if errors.Is(err, service.ErrWriteFailed) {
		return err
	}
	b.clearConversation(userID)
	return err
}

func (b *Bot) transactionReply(chatID int64, input service.TransactionInput, err error) error {
	switch {
	case err == nil:
	case errors.Is(err, service.ErrWriteFailed):
		return b.sendWithReplyMarkup(chatID,
			"⚠️ Could not save the transaction. Send the vendor again (or «Skip») to retry, or cancel input.", skipKeyboard())
	case errors.Is(err, service.ErrEmptyText):
		return b.sendText(chatID, "The description is empty, nothing was saved.")
	default:
		return b.sendText(chatID, "The transaction is invalid, nothing was saved.")
	}

	sign := "-"
	if input.Type == string(model.TransactionIncome) {
		sign = "+"
	}
	return b.sendText(chatID, fmt.Sprintf("✅ Saved: %s %s$%.2f", escape(input.Description), sign, input.Amount))
}
