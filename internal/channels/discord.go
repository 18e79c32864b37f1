package channels

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/coopco/schedbot/internal/autocomplete"
	"github.com/coopco/schedbot/internal/bus"
	"github.com/coopco/schedbot/internal/commands"
)

const discordMaxLen = 2000

func init() {
	Register("discord", newDiscordChannel)
}

type discordConfig struct {
	Token         string   `json:"token"`
	ApplicationID string   `json:"applicationId"`
	GuildID       string   `json:"guildId"`
	AllowedUsers  []string `json:"allowedUsers"`
}

// DiscordChannel serves slash commands and delivers messages on Discord.
type DiscordChannel struct {
	session      *discordgo.Session
	bus          *bus.MessageBus
	allowedUsers map[string]bool
	commands     []commands.Definition
	suggester    Suggester
	appID        string
	guildID      string

	mu      sync.Mutex
	pending map[string]*discordgo.Interaction // deferred interactions awaiting a reply
}

func newDiscordChannel(cfg json.RawMessage, deps Deps) (Channel, error) {
	var dcfg discordConfig
	if err := json.Unmarshal(cfg, &dcfg); err != nil {
		return nil, fmt.Errorf("failed to parse discord config: %w", err)
	}
	if dcfg.Token == "" {
		return nil, fmt.Errorf("discord: token is required")
	}
	session, err := discordgo.New("Bot " + dcfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds
	return &DiscordChannel{
		session:      session,
		bus:          deps.Bus,
		allowedUsers: allowList(dcfg.AllowedUsers),
		commands:     deps.Commands,
		suggester:    deps.Suggester,
		appID:        dcfg.ApplicationID,
		guildID:      dcfg.GuildID,
		pending:      make(map[string]*discordgo.Interaction),
	}, nil
}

func (c *DiscordChannel) Name() string { return "discord" }

func (c *DiscordChannel) Start(ctx context.Context) error {
	c.session.AddHandler(c.onReady)
	c.session.AddHandler(c.onInteraction)
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: failed to open websocket: %w", err)
	}
	return nil
}

func (c *DiscordChannel) Stop() error {
	return c.session.Close()
}

// onReady registers the slash commands once the gateway session is up.
func (c *DiscordChannel) onReady(s *discordgo.Session, r *discordgo.Ready) {
	appID := c.appID
	if appID == "" && r.User != nil {
		appID = r.User.ID
	}
	registered, err := s.ApplicationCommandBulkOverwrite(appID, c.guildID, discordCommands(c.commands))
	if err != nil {
		slog.Error("discord: failed to register slash commands", "app", appID, "guild", c.guildID, "err", err)
		return
	}
	slog.Info("discord: slash commands registered", "count", len(registered), "guild", c.guildID)
}

func (c *DiscordChannel) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		c.handleCommand(s, i)
	case discordgo.InteractionApplicationCommandAutocomplete:
		c.handleAutocomplete(s, i)
	}
}

func (c *DiscordChannel) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	userID := interactionUser(i)
	if !c.IsAllowed(userID) {
		slog.Warn("discord: command from disallowed user", "userID", userID)
		err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{
				Content: "⛔ You are not allowed to use this bot.",
				Flags:   discordgo.MessageFlagsEphemeral,
			},
		})
		if err != nil {
			slog.Error("discord: failed to reject interaction", "err", err)
		}
		return
	}

	data := i.ApplicationCommandData()
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	})
	if err != nil {
		slog.Error("discord: failed to defer reply", "command", data.Name, "err", err)
		return
	}

	c.mu.Lock()
	c.pending[i.ID] = i.Interaction
	c.mu.Unlock()

	msg := bus.InboundMessage{
		Channel:  "discord",
		SenderID: userID,
		ChatID:   i.ChannelID,
		Command:  data.Name,
		Args:     optionArgs(data.Options),
		Metadata: map[string]string{"interaction_id": i.ID},
	}
	if !c.bus.TryPublishInbound(msg) {
		slog.Warn("discord: inbound queue full", "command", data.Name)
		if err := c.Send(msg.Reply("⏳ The bot is busy, please try again in a moment.", bus.TypeError)); err != nil {
			slog.Error("discord: failed to send busy reply", "err", err)
		}
	}
}

func (c *DiscordChannel) handleAutocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	data := i.ApplicationCommandData()
	option, typed := focusedOption(data.Options)

	var choices []autocomplete.Choice
	if c.suggester != nil && option != "" {
		choices = c.suggester.Suggest(data.Name, option, typed)
	}
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: discordChoices(choices)},
	})
	if err != nil {
		slog.Debug("discord: autocomplete response failed", "command", data.Name, "option", option, "err", err)
	}
}

// Send edits the deferred interaction reply when msg answers one, and posts
// to the channel otherwise.
func (c *DiscordChannel) Send(msg bus.OutboundMessage) error {
	chunks := splitMessage(msg.Content, discordMaxLen)

	if id := msg.Metadata["interaction_id"]; id != "" {
		c.mu.Lock()
		inter, ok := c.pending[id]
		delete(c.pending, id)
		c.mu.Unlock()
		if ok {
			return c.editReply(inter, chunks)
		}
	}

	for _, chunk := range chunks {
		if _, err := c.session.ChannelMessageSend(msg.ChatID, chunk); err != nil {
			return fmt.Errorf("discord: failed to send message: %w", err)
		}
	}
	return nil
}

func (c *DiscordChannel) editReply(inter *discordgo.Interaction, chunks []string) error {
	first := chunks[0]
	if _, err := c.session.InteractionResponseEdit(inter, &discordgo.WebhookEdit{Content: &first}); err != nil {
		return fmt.Errorf("discord: failed to edit interaction reply: %w", err)
	}
	for _, chunk := range chunks[1:] {
		if _, err := c.session.FollowupMessageCreate(inter, true, &discordgo.WebhookParams{Content: chunk}); err != nil {
			return fmt.Errorf("discord: failed to send follow-up: %w", err)
		}
	}
	return nil
}

// ResolveChat checks that chatID is a text channel the bot can post in.
func (c *DiscordChannel) ResolveChat(_ context.Context, chatID string) (string, error) {
	ch, err := c.session.State.Channel(chatID)
	if err != nil {
		ch, err = c.session.Channel(chatID)
		if err != nil {
			return "", fmt.Errorf("discord: channel %s: %w", chatID, err)
		}
	}
	if !discordTextChannel(ch.Type) {
		return "", fmt.Errorf("discord: channel %s is not a text channel", chatID)
	}
	if ch.GuildID != "" && c.session.State.User != nil {
		perms, err := c.session.State.UserChannelPermissions(c.session.State.User.ID, chatID)
		if err == nil && perms&discordgo.PermissionSendMessages == 0 {
			return "", fmt.Errorf("discord: missing send permission in channel %s", chatID)
		}
	}
	return ch.Name, nil
}

func (c *DiscordChannel) IsAllowed(senderID string) bool {
	if len(c.allowedUsers) == 0 {
		return true
	}
	return c.allowedUsers[senderID]
}

func discordTextChannel(t discordgo.ChannelType) bool {
	switch t {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeDM, discordgo.ChannelTypeGroupDM,
		discordgo.ChannelTypeGuildNews, discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread,
		discordgo.ChannelTypeGuildVoice:
		return true
	}
	return false
}

// discordCommands converts command definitions to slash commands. Discord
// requires required options to precede optional ones.
func discordCommands(defs []commands.Definition) []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(defs))
	for _, d := range defs {
		sorted := append([]commands.Option(nil), d.Options...)
		sort.SliceStable(sorted, func(a, b int) bool {
			return sorted[a].Required && !sorted[b].Required
		})

		opts := make([]*discordgo.ApplicationCommandOption, 0, len(sorted))
		for _, o := range sorted {
			opt := &discordgo.ApplicationCommandOption{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         o.Name,
				Description:  o.Description,
				Required:     o.Required,
				Autocomplete: o.Autocomplete,
			}
			if o.Kind == commands.OptionChannel {
				opt.Type = discordgo.ApplicationCommandOptionChannel
				opt.Autocomplete = false
				opt.ChannelTypes = []discordgo.ChannelType{
					discordgo.ChannelTypeGuildText,
					discordgo.ChannelTypeGuildNews,
				}
			}
			opts = append(opts, opt)
		}
		out = append(out, &discordgo.ApplicationCommand{
			Name:        d.Name,
			Description: d.Description,
			Options:     opts,
		})
	}
	return out
}

func optionArgs(opts []*discordgo.ApplicationCommandInteractionDataOption) map[string]string {
	args := make(map[string]string, len(opts))
	for _, o := range opts {
		args[o.Name] = optionString(o.Value)
	}
	return args
}

func focusedOption(opts []*discordgo.ApplicationCommandInteractionDataOption) (string, string) {
	for _, o := range opts {
		if o.Focused {
			return o.Name, optionString(o.Value)
		}
	}
	return "", ""
}

func optionString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func discordChoices(choices []autocomplete.Choice) []*discordgo.ApplicationCommandOptionChoice {
	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(choices))
	for _, ch := range choices {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: ch.Name, Value: ch.Value})
	}
	return out
}

func interactionUser(i *discordgo.InteractionCreate) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	}
	return ""
}
