package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coopco/schedbot/internal/bus"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
)

// slackTextPrefix marks a plain channel message as a command, e.g. "!scheduled".
const slackTextPrefix = "!"

func init() {
	Register("slack", newSlackChannel)
}

type slackConfig struct {
	BotToken     string   `json:"botToken"`
	AppToken     string   `json:"appToken"`
	AllowedUsers []string `json:"allowedUsers"`
}

// SlackChannel implements Channel for Slack via socket mode. Commands arrive
// as slash commands or as messages starting with "!".
type SlackChannel struct {
	client       *slack.Client
	socketClient *socketmode.Client
	bus          *bus.MessageBus
	allowedUsers map[string]bool
	cancel       context.CancelFunc
}

func newSlackChannel(cfg json.RawMessage, deps Deps) (Channel, error) {
	var c slackConfig
	if err := json.Unmarshal(cfg, &c); err != nil {
		return nil, fmt.Errorf("failed to parse slack config: %w", err)
	}
	if c.BotToken == "" || c.AppToken == "" {
		return nil, fmt.Errorf("slack: botToken and appToken are required")
	}
	client := slack.New(c.BotToken, slack.OptionAppLevelToken(c.AppToken))
	socketClient := socketmode.New(client)
	return &SlackChannel{
		client:       client,
		socketClient: socketClient,
		bus:          deps.Bus,
		allowedUsers: allowList(c.AllowedUsers),
	}, nil
}

func (c *SlackChannel) Name() string { return "slack" }

func (c *SlackChannel) Start(ctx context.Context) error {
	ctx, c.cancel = context.WithCancel(ctx)
	go c.handleEvents(ctx)
	go func() {
		if err := c.socketClient.RunContext(ctx); err != nil && ctx.Err() == nil {
			slog.Error("slack: socket mode stopped", "err", err)
		}
	}()
	return nil
}

func (c *SlackChannel) handleEvents(ctx context.Context) {
	for {
		var evt socketmode.Event
		select {
		case <-ctx.Done():
			return
		case evt = <-c.socketClient.Events:
		}
		if evt.Request != nil {
			c.socketClient.Ack(*evt.Request)
		}

		switch evt.Type {
		case socketmode.EventTypeSlashCommand:
			cmd, ok := evt.Data.(slack.SlashCommand)
			if !ok {
				continue
			}
			c.publish(slashInbound(cmd))
		case socketmode.EventTypeEventsAPI:
			eventsAPI, ok := evt.Data.(slackevents.EventsAPIEvent)
			if !ok || eventsAPI.Type != slackevents.CallbackEvent {
				continue
			}
			inner, ok := eventsAPI.InnerEvent.Data.(*slackevents.MessageEvent)
			if !ok || inner.BotID != "" {
				continue
			}
			if msg, ok := textInbound(inner); ok {
				c.publish(msg)
			}
		}
	}
}

func (c *SlackChannel) publish(msg bus.InboundMessage) {
	if !c.IsAllowed(msg.SenderID) {
		slog.Warn("slack: command from disallowed user", "user", msg.SenderID)
		return
	}
	c.bus.PublishInbound(msg)
}

func slashInbound(cmd slack.SlashCommand) bus.InboundMessage {
	return bus.InboundMessage{
		Channel:  "slack",
		SenderID: cmd.UserID,
		ChatID:   cmd.ChannelID,
		Command:  strings.ToLower(strings.TrimPrefix(cmd.Command, "/")),
		Content:  cmd.Text,
	}
}

func textInbound(ev *slackevents.MessageEvent) (bus.InboundMessage, bool) {
	text := strings.TrimSpace(ev.Text)
	if !strings.HasPrefix(text, slackTextPrefix) {
		return bus.InboundMessage{}, false
	}
	name, rest, _ := strings.Cut(strings.TrimPrefix(text, slackTextPrefix), " ")
	if name == "" {
		return bus.InboundMessage{}, false
	}
	return bus.InboundMessage{
		Channel:  "slack",
		SenderID: ev.User,
		ChatID:   ev.Channel,
		Command:  strings.ToLower(name),
		Content:  strings.TrimSpace(rest),
		Metadata: map[string]string{"message_id": ev.TimeStamp},
	}, true
}

func (c *SlackChannel) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	return nil
}

func (c *SlackChannel) Send(msg bus.OutboundMessage) error {
	opts := []slack.MsgOption{slack.MsgOptionText(msg.Content, false)}
	if msg.ReplyTo != "" {
		opts = append(opts, slack.MsgOptionTS(msg.ReplyTo))
	}
	_, _, err := c.client.PostMessage(msg.ChatID, opts...)
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// ResolveChat checks that the bot is a member of chatID.
func (c *SlackChannel) ResolveChat(ctx context.Context, chatID string) (string, error) {
	ch, err := c.client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: chatID})
	if err != nil {
		return "", fmt.Errorf("slack: conversation %s: %w", chatID, err)
	}
	if !ch.IsMember && !ch.IsIM {
		return "", fmt.Errorf("slack: bot is not a member of %s", chatID)
	}
	return ch.Name, nil
}

func (c *SlackChannel) IsAllowed(senderID string) bool {
	if len(c.allowedUsers) == 0 {
		return true
	}
	return c.allowedUsers[senderID]
}
