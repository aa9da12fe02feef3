package activity

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/skridlevsky/commitboard/internal/calendar"
	"github.com/skridlevsky/commitboard/internal/discord"
	"github.com/skridlevsky/commitboard/internal/render"
)

const defaultMimeType = "application/octet-stream"

// enrich fetches and renders the message behind every row concurrently.
// A message that cannot be fetched leaves its item without content.
func (a *Aggregator) enrich(ctx context.Context, rows []FeedRow, now time.Time) ([]FeedItem, error) {
	items := make([]FeedItem, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	for i, row := range rows {
		i, row := i, row
		g.Go(func() error {
			item, err := a.enrichOne(gctx, row, now)
			if err != nil {
				return err
			}
			items[i] = item
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (a *Aggregator) enrichOne(ctx context.Context, row FeedRow, now time.Time) (FeedItem, error) {
	c := row.Commit
	item := FeedItem{
		UserID:        c.UserID,
		DisplayName:   row.DisplayName,
		AvatarURL:     row.AvatarURL,
		ThreadID:      row.ThreadID,
		MessageID:     c.MessageID,
		Attachments:   []Attachment{},
		CommittedAt:   c.CommittedAt,
		RelativeLabel: calendar.RelativeTime(c.CommittedAt, now),
	}

	if a.messages == nil || row.ThreadID == "" {
		return item, nil
	}
	msg, ok := a.messages.Message(ctx, row.ThreadID, c.MessageID).Get()
	if !ok {
		a.log.WithFields(logrus.Fields{
			"thread_id":  row.ThreadID,
			"message_id": c.MessageID,
		}).Debug("Feed message unavailable, serving item without content")
		return item, nil
	}

	content, attachments := msg.Body()
	if a.renderer != nil {
		html, err := a.renderer.Render(ctx, render.SmartTruncate(content, a.cfg.FeedWords))
		if err != nil {
			a.log.WithError(err).WithField("message_id", c.MessageID).Warn("Failed to render feed message")
			return FeedItem{}, fmt.Errorf("failed to render message %s: %w", c.MessageID, err)
		}
		item.RenderedHTML = html
	}
	item.Attachments = convertAttachments(attachments)
	return item, nil
}

func convertAttachments(in []discord.Attachment) []Attachment {
	out := make([]Attachment, 0, len(in))
	for _, att := range in {
		out = append(out, Attachment{
			URL:      att.URL,
			MimeType: attachmentMimeType(att),
			Filename: att.Filename,
		})
	}
	return out
}

// attachmentMimeType trusts the platform's content type and otherwise
// guesses from the file extension.
func attachmentMimeType(att discord.Attachment) string {
	if att.ContentType != "" {
		return att.ContentType
	}
	if t := mime.TypeByExtension(filepath.Ext(att.Filename)); t != "" {
		return t
	}
	return defaultMimeType
}
