package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/coopco/schedbot/internal/bus"
	"github.com/coopco/schedbot/internal/commands"
)

const telegramMaxLen = 4096

func init() {
	Register("telegram", newTelegramChannel)
}

type telegramConfig struct {
	Token        string   `json:"token"`
	AllowedUsers []string `json:"allowedUsers"`
}

type TelegramChannel struct {
	bot          *tgbotapi.BotAPI
	bus          *bus.MessageBus
	allowedUsers map[string]bool
	commands     []commands.Definition
	stopCh       chan struct{}
	stopOnce     sync.Once
}

func newTelegramChannel(cfg json.RawMessage, deps Deps) (Channel, error) {
	var tcfg telegramConfig
	if err := json.Unmarshal(cfg, &tcfg); err != nil {
		return nil, fmt.Errorf("failed to parse telegram config: %w", err)
	}
	bot, err := tgbotapi.NewBotAPI(tcfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &TelegramChannel{
		bot:          bot,
		bus:          deps.Bus,
		allowedUsers: allowList(tcfg.AllowedUsers),
		commands:     deps.Commands,
		stopCh:       make(chan struct{}),
	}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Start(ctx context.Context) error {
	if len(c.commands) > 0 {
		if _, err := c.bot.Request(tgbotapi.NewSetMyCommands(telegramCommands(c.commands)...)); err != nil {
			slog.Warn("telegram: failed to register bot commands", "err", err)
		}
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := c.bot.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case update, ok := <-updates:
				if !ok {
					return
				}
				msg, ok := telegramInbound(update.Message)
				if !ok {
					continue
				}
				if !c.IsAllowed(msg.SenderID) {
					slog.Warn("telegram: command from disallowed user", "senderID", msg.SenderID)
					continue
				}
				c.bus.PublishInbound(msg)
			case <-ctx.Done():
				c.bot.StopReceivingUpdates()
				return
			case <-c.stopCh:
				c.bot.StopReceivingUpdates()
				return
			}
		}
	}()
	return nil
}

func telegramInbound(m *tgbotapi.Message) (bus.InboundMessage, bool) {
	if m == nil || m.From == nil || !m.IsCommand() {
		return bus.InboundMessage{}, false
	}
	return bus.InboundMessage{
		Channel:  "telegram",
		SenderID: strconv.FormatInt(m.From.ID, 10),
		ChatID:   strconv.FormatInt(m.Chat.ID, 10),
		Command:  strings.ToLower(m.Command()),
		Content:  m.CommandArguments(),
		Metadata: map[string]string{"message_id": strconv.Itoa(m.MessageID)},
	}, true
}

func telegramCommands(defs []commands.Definition) []tgbotapi.BotCommand {
	out := make([]tgbotapi.BotCommand, 0, len(defs))
	for _, d := range defs {
		out = append(out, tgbotapi.BotCommand{Command: d.Name, Description: d.Description})
	}
	return out
}

func (c *TelegramChannel) Stop() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	return nil
}

func (c *TelegramChannel) Send(msg bus.OutboundMessage) error {
	replyTo, _ := strconv.Atoi(msg.ReplyTo)
	for i, chunk := range splitMessage(msg.Content, telegramMaxLen) {
		m, err := telegramMessage(msg.ChatID, chunk)
		if err != nil {
			return err
		}
		if i == 0 && replyTo != 0 {
			m.ReplyToMessageID = replyTo
		}
		if _, err := c.bot.Send(m); err != nil {
			return fmt.Errorf("telegram: send to %s: %w", msg.ChatID, err)
		}
	}
	return nil
}

// telegramMessage addresses a numeric chat ID or a public "@channel" username.
func telegramMessage(chatID, text string) (tgbotapi.MessageConfig, error) {
	if strings.HasPrefix(chatID, "@") {
		return tgbotapi.NewMessageToChannel(chatID, text), nil
	}
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("telegram: invalid chatID %q: %w", chatID, err)
	}
	return tgbotapi.NewMessage(id, text), nil
}

// ResolveChat checks that the bot can see chatID and returns its title.
func (c *TelegramChannel) ResolveChat(_ context.Context, chatID string) (string, error) {
	cfg := tgbotapi.ChatInfoConfig{}
	if strings.HasPrefix(chatID, "@") {
		cfg.SuperGroupUsername = chatID
	} else {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return "", fmt.Errorf("telegram: invalid chatID %q: %w", chatID, err)
		}
		cfg.ChatID = id
	}
	chat, err := c.bot.GetChat(cfg)
	if err != nil {
		return "", fmt.Errorf("telegram: chat %s: %w", chatID, err)
	}
	if chat.Title != "" {
		return chat.Title, nil
	}
	return chat.UserName, nil
}

func (c *TelegramChannel) IsAllowed(senderID string) bool {
	if len(c.allowedUsers) == 0 {
		return true
	}
	return c.allowedUsers[senderID]
}
