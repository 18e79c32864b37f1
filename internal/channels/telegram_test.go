package channels

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/coopco/schedbot/internal/commands"
)

func commandMessage(text string) *tgbotapi.Message {
	cmdLen := len(text)
	for i, r := range text {
		if r == ' ' {
			cmdLen = i
			break
		}
	}
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: 42},
		Chat:      &tgbotapi.Chat{ID: -100},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: cmdLen}},
	}
}

func TestTelegramInbound(t *testing.T) {
	msg, ok := telegramInbound(commandMessage("/schedule@schedbot 09:00 UTC Stand-up"))
	if !ok {
		t.Fatal("expected command message to be accepted")
	}
	if msg.Command != "schedule" || msg.Content != "09:00 UTC Stand-up" || msg.SenderID != "42" ||
		msg.ChatID != "-100" || msg.Metadata["message_id"] != "7" {
		t.Errorf("unexpected inbound %+v", msg)
	}

	plain := &tgbotapi.Message{From: &tgbotapi.User{ID: 1}, Chat: &tgbotapi.Chat{ID: 1}, Text: "hello"}
	if _, ok := telegramInbound(plain); ok {
		t.Error("plain text must be ignored")
	}
	if _, ok := telegramInbound(nil); ok {
		t.Error("nil message must be ignored")
	}
}

func TestTelegramMessage(t *testing.T) {
	m, err := telegramMessage("-100123", "hi")
	if err != nil || m.ChatID != -100123 || m.Text != "hi" {
		t.Errorf("numeric chat: %+v, %v", m, err)
	}
	m, err = telegramMessage("@announcements", "hi")
	if err != nil || m.ChannelUsername != "@announcements" {
		t.Errorf("channel username: %+v, %v", m, err)
	}
	if _, err := telegramMessage("general", "hi"); err == nil {
		t.Error("expected error for non-numeric chat ID")
	}
}

func TestTelegramCommands(t *testing.T) {
	got := telegramCommands([]commands.Definition{
		commands.NewCancelCommand(nil).Definition(),
		commands.NewListCommand(nil).Definition(),
	})
	if len(got) != 2 || got[0].Command != "cancel" || got[1].Command != "scheduled" || got[1].Description == "" {
		t.Errorf("unexpected bot commands %+v", got)
	}
}
