package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/coopco/schedbot/internal/bus"
	"github.com/coopco/schedbot/internal/forms"
)

// FormClient queries form response data.
type FormClient interface {
	Count(ctx context.Context, formName string) ([]forms.Form, error)
	Result(ctx context.Context, formName, question string) ([]forms.AnswerCount, error)
}

// FormCommand reports response counts for forms whose name matches.
type FormCommand struct {
	client FormClient
}

func NewFormCommand(c FormClient) *FormCommand {
	return &FormCommand{client: c}
}

func (c *FormCommand) Definition() Definition {
	return Definition{
		Name:        "form",
		Description: "Fetch form response counts",
		Options: []Option{
			{Name: "formname", Description: "A part of the form name to search for", Required: true, Rest: true},
		},
	}
}

func (c *FormCommand) Execute(ctx context.Context, msg bus.InboundMessage) (string, error) {
	name := strings.TrimSpace(msg.Arg("formname"))
	found, err := c.client.Count(ctx, name)
	if err != nil {
		slog.Error("form count query failed", "form", name, "err", err)
		return "", errors.New(forms.CountError(err))
	}
	return forms.FormatCount(name, found), nil
}

// FormResultCommand reports the answer breakdown for one question of a form.
type FormResultCommand struct {
	client FormClient
}

func NewFormResultCommand(c FormClient) *FormResultCommand {
	return &FormResultCommand{client: c}
}

func (c *FormResultCommand) Definition() Definition {
	return Definition{
		Name:        "formresult",
		Description: "Fetch the answers given to a form question",
		Options: []Option{
			{Name: "formname", Description: "A part of the form name to search for", Required: true},
			{Name: "responsequery", Description: "The question to summarise", Required: true, Rest: true},
		},
	}
}

func (c *FormResultCommand) Execute(ctx context.Context, msg bus.InboundMessage) (string, error) {
	name := strings.TrimSpace(msg.Arg("formname"))
	question := strings.TrimSpace(msg.Arg("responsequery"))
	if question == "" {
		return "", errors.New("⚠️ Error: question must be provided to get result for!")
	}
	counts, err := c.client.Result(ctx, name, question)
	if err != nil {
		slog.Error("form result query failed", "form", name, "question", question, "err", err)
		return "", errors.New(forms.ResultError(err))
	}
	return forms.FormatResult(question, counts), nil
}
