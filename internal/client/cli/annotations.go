package cli

import (
	"context"
	"strings"

	"github.com/scriptureforge/offline/internal/models"
)

// Annotate stores a bookmark, highlight or note on the reference in args.
// Highlights ask for a colour and notes for their text.
func (a *App) Annotate(ctx context.Context, t models.ContentType, args []string) error {
	if len(args) == 0 {
		return errUsage(string(t) + " <reference>")
	}
	reference := strings.Join(args, " ")
	data := map[string]any{}

	switch t {
	case models.ContentTypeHighlight:
		color, err := getSimpleText(a.reader, "Colour (default yellow)", a.out)
		if err != nil {
			return err
		}
		if color == "" {
			color = "yellow"
		}
		data["color"] = color
	case models.ContentTypeNote:
		text, err := GetMultiline(a.reader, "Note text", a.out)
		if err != nil {
			return err
		}
		if text == "" {
			a.printf("Empty note discarded\n")
			return nil
		}
		data["text"] = text
	}

	id, err := a.annotations.StoreUserContent(ctx, t, reference, data)
	if err != nil {
		return err
	}
	a.printf("Saved %s\n", id)
	return nil
}

func (a *App) List(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errUsage("list <bookmark|highlight|note>")
	}
	items, err := a.annotations.GetUserContent(ctx, models.ContentType(args[0]))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		a.printf("Nothing saved\n")
		return nil
	}
	for _, it := range items {
		state := "local"
		if it.SyncedAt != nil {
			state = "synced"
		}
		a.printf("%s  [%s]", it.ID, state)
		if c, ok := it.Data["color"]; ok {
			a.printf("  %v", c)
		}
		if text, ok := it.Data["text"]; ok {
			a.printf("\n    %v", text)
		}
		a.printf("\n")
	}
	return nil
}

func (a *App) Delete(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage("delete <id>")
	}
	// ids embed the reference, which may contain spaces
	id := strings.Join(args, " ")
	if err := a.annotations.DeleteUserContent(ctx, id); err != nil {
		return err
	}
	a.printf("Deleted %s\n", id)
	return nil
}
