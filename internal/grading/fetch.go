package grading

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"rosterlink/pkg/contracts/domain"
)

// PageSize is the number of submissions a full page holds. A shorter page is
// the last one.
const PageSize = 100

// DefaultMaxPages bounds pagination of one assignment.
const DefaultMaxPages = 500

// SubmissionFetcher returns one page of submissions for an assignment. Pages
// start at 1.
type SubmissionFetcher interface {
	FetchSubmissionsPage(ctx context.Context, assignmentID string, page int) ([]domain.Submission, error)
}

// FetcherFunc adapts a function to SubmissionFetcher.
type FetcherFunc func(ctx context.Context, assignmentID string, page int) ([]domain.Submission, error)

// FetchSubmissionsPage calls f.
func (f FetcherFunc) FetchSubmissionsPage(ctx context.Context, assignmentID string, page int) ([]domain.Submission, error) {
	return f(ctx, assignmentID, page)
}

// fetchResult is what one assignment's pagination produced.
type fetchResult struct {
	submissions []domain.Submission
	err         error
	page        int
}

// fetchAll loads every assignment concurrently. Each assignment pages
// sequentially into its own slice; a failed page keeps what was loaded before
// it. No assignment's failure stops another.
func (c *Correlator) fetchAll(ctx context.Context, assignmentIDs []string) map[string]fetchResult {
	results := make(map[string]fetchResult, len(assignmentIDs))
	var mu sync.Mutex

	var g errgroup.Group
	for _, id := range assignmentIDs {
		g.Go(func() error {
			res := c.fetchAssignment(ctx, id)
			mu.Lock()
			results[id] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (c *Correlator) fetchAssignment(ctx context.Context, assignmentID string) fetchResult {
	var res fetchResult
	for page := 1; page <= c.maxPages; page++ {
		batch, err := c.fetcher.FetchSubmissionsPage(ctx, assignmentID, page)
		if err != nil {
			res.err = err
			res.page = page
			c.logger.Warn("submission page fetch failed",
				slog.String("assignment_id", assignmentID),
				slog.Int("page", page),
				slog.Int("kept", len(res.submissions)),
				slog.String("error", err.Error()))
			return res
		}
		res.submissions = append(res.submissions, batch...)
		if len(batch) != PageSize {
			return res
		}
	}
	c.logger.Warn("submission pagination stopped at page limit",
		slog.String("assignment_id", assignmentID),
		slog.Int("max_pages", c.maxPages))
	return res
}
