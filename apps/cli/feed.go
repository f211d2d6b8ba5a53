package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/schoolconnect/core/content"
)

const dateLayout = "02 Jan 2006 15:04"

func (cli *commandLine) feed(ctx context.Context, category string, pages int) error {
	cat, err := content.ParseCategory(category)
	if err != nil {
		return err
	}
	if err := cli.ensureSession(ctx); err != nil {
		return err
	}

	syncer := cli.deps.Syncer
	if err := syncer.SetFilter(ctx, string(cat)); err != nil {
		return err
	}
	for page := 1; page < pages && syncer.View().HasMore; page++ {
		if err := syncer.LoadMore(ctx); err != nil {
			return err
		}
	}

	view := syncer.View()
	if view.Error != "" {
		return errors.New(view.Error)
	}
	items := view.Bundle.Category(cat)
	if len(items) == 0 {
		fmt.Fprintln(cli.out, "Nothing to show")
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(cli.out, "%-17s  %-9s  %s  (%s)\n", displayDate(it), it.Kind, it.Title, it.Sender)
		for _, att := range it.Attachments {
			fmt.Fprintf(cli.out, "%-17s  %-9s    - %s %s\n", "", "", att.FileName, att.FilePath)
		}
	}
	if view.HasMore {
		fmt.Fprintln(cli.out, "(more available, use -pages)")
	}
	return nil
}

// displayDate formats the item date, falling back to the raw backend text for undated items.
func displayDate(it content.Item) string {
	if it.Date.IsZero() || it.Date.Equal(content.Epoch) {
		return it.RawDate
	}
	return it.Date.Format(dateLayout)
}
