package canvas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"rosterlink/pkg/contracts/domain"
)

// flexID accepts ids sent as JSON numbers or strings.
type flexID = domain.UserID

type topicJSON struct {
	ID           flexID `json:"id"`
	Title        string `json:"title"`
	AssignmentID flexID `json:"assignment_id"`
}

type participantJSON struct {
	ID          flexID `json:"id"`
	DisplayName string `json:"display_name"`
}

type entryJSON struct {
	ID        flexID      `json:"id"`
	UserID    flexID      `json:"user_id"`
	ParentID  flexID      `json:"parent_id"`
	CreatedAt time.Time   `json:"created_at"`
	Message   string      `json:"message"`
	Deleted   bool        `json:"deleted"`
	Replies   []entryJSON `json:"replies"`
}

type topicViewJSON struct {
	Participants []participantJSON `json:"participants"`
	View         []entryJSON       `json:"view"`
}

// PartialPostsError reports discussion topics whose view could not be
// loaded. The posts of every other topic are still returned with it.
type PartialPostsError struct {
	FailedTopics []string
	Err          error
}

func (e *PartialPostsError) Error() string {
	return fmt.Sprintf("failed to load discussion topics %s: %v", strings.Join(e.FailedTopics, ", "), e.Err)
}

func (e *PartialPostsError) Unwrap() error { return e.Err }

// FetchDiscussionPosts returns every entry of every discussion topic in the
// course, replies included, tagged with topic and assignment. A topic whose
// view fails is skipped; the posts loaded so far come back together with a
// *PartialPostsError naming the skipped topics.
func (c *Client) FetchDiscussionPosts(ctx context.Context, courseID string) ([]domain.DiscussionPost, error) {
	topics, err := listAll[topicJSON](ctx, c, coursePath(courseID, "discussion_topics"), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list discussion topics: %w", err)
	}

	var (
		posts  []domain.DiscussionPost
		failed []string
		errs   []error
	)
	for _, t := range topics {
		var view topicViewJSON
		path := coursePath(courseID, "discussion_topics", url.PathEscape(t.ID.String()), "view")
		if err := c.getJSON(ctx, path, nil, &view); err != nil {
			if ctx.Err() != nil {
				return posts, fmt.Errorf("failed to load discussion topic %s: %w", t.ID, err)
			}
			c.logger.WarnContext(ctx, "discussion topic skipped",
				slog.String("topic_id", t.ID.String()),
				slog.String("error", err.Error()))
			failed = append(failed, t.ID.String())
			errs = append(errs, err)
			continue
		}

		authors := make(map[string]string, len(view.Participants))
		for _, p := range view.Participants {
			authors[p.ID.String()] = p.DisplayName
		}

		before := len(posts)
		posts = flatten(posts, view.View, "", t, authors)
		c.logger.DebugContext(ctx, "discussion topic loaded",
			slog.String("topic_id", t.ID.String()),
			slog.Int("entries", len(posts)-before))
	}
	if len(failed) > 0 {
		return posts, &PartialPostsError{FailedTopics: failed, Err: errors.Join(errs...)}
	}
	return posts, nil
}

// flatten appends entries and their nested replies depth first. A reply
// without an explicit parent_id is attributed to the entry it is nested in.
func flatten(out []domain.DiscussionPost, entries []entryJSON, parent string, t topicJSON, authors map[string]string) []domain.DiscussionPost {
	for _, e := range entries {
		parentID := e.ParentID.String()
		if parentID == "" {
			parentID = parent
		}
		if !e.Deleted {
			out = append(out, domain.DiscussionPost{
				ID:                e.ID.String(),
				AuthorDisplayName: authors[e.UserID.String()],
				AuthorUserID:      e.UserID,
				TopicID:           t.ID.String(),
				TopicTitle:        t.Title,
				AssignmentID:      t.AssignmentID.String(),
				ParentID:          parentID,
				CreatedAt:         e.CreatedAt,
				Message:           e.Message,
			})
		}
		out = flatten(out, e.Replies, e.ID.String(), t, authors)
	}
	return out
}
