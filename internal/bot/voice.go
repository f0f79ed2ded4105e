package bot

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"daily-tracker/internal/voice"
)

func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message) error {
	adapter := b.voiceAdapter(msg.From.ID)
	if !adapter.Supported() {
		return b.sendText(msg.Chat.ID, voice.Describe(voice.ErrUnsupported))
	}

	_, s, err := b.userSession(ctx, msg.From, msg.Chat.ID)
	if err != nil {
		return nil
	}

	url, err := b.api.GetFileDirectURL(msg.Voice.FileID)
	if err != nil {
		return fmt.Errorf("voice file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := b.api.Client.Do(req)
	if err != nil {
		return fmt.Errorf("download voice: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download voice: status %d", resp.StatusCode)
	}

	mime := msg.Voice.MimeType
	if mime == "" {
		mime = "audio/ogg"
	}
	text, err := adapter.Listen(ctx, voice.Utterance{Data: resp.Body, MIME: mime, Name: "voice.ogg"}, s.Gateway().AddTask)
	switch {
	case err == nil:
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🎙 Added: %s", escape(text)))
	case text != "":
		b.log.Warn(ctx, "voice task not saved", "telegram_id", msg.From.ID, "err", err)
		return b.sendText(msg.Chat.ID, fmt.Sprintf("🎙 Heard «%s» but could not save the task.", escape(text)))
	default:
		return b.sendText(msg.Chat.ID, voice.Describe(err))
	}
}
