// Package grading correlates discussion posts with assignment submissions to
// show which students still need a grade and which teachers replied to whom.
package grading

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"rosterlink/pkg/contracts/domain"
)

// Options tunes a Correlator.
type Options struct {
	MaxPages int
	Logger   *slog.Logger
}

// Correlator builds grading topics from posts and submissions.
type Correlator struct {
	fetcher  SubmissionFetcher
	maxPages int
	logger   *slog.Logger
}

// Result is the outcome of one correlation.
type Result struct {
	Topics []domain.GradingTopic
	Notes  domain.ProcessingNotes
}

// NewCorrelator creates a Correlator that loads submissions through fetcher.
func NewCorrelator(fetcher SubmissionFetcher, opts Options) *Correlator {
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Correlator{
		fetcher:  fetcher,
		maxPages: opts.MaxPages,
		logger:   logger.With(slog.String("component", "grading_correlator")),
	}
}

type topicPosts struct {
	id, title, assignmentID string
	posts                   []domain.DiscussionPost
}

// Correlate computes the grading topics of every discussion topic tied to an
// assignment, in the order topics first appear in posts.
func (c *Correlator) Correlate(ctx context.Context, posts []domain.DiscussionPost, teacherIDs []domain.UserID) Result {
	var notes domain.ProcessingNotes

	teachers := make(map[string]bool, len(teacherIDs))
	for _, id := range teacherIDs {
		if k := domain.CanonicalID(id.String()); k != "" {
			teachers[k] = true
		}
	}

	topics := groupGradedTopics(posts)
	var assignmentIDs []string
	seen := make(map[string]bool)
	for _, t := range topics {
		if !seen[t.assignmentID] {
			seen[t.assignmentID] = true
			assignmentIDs = append(assignmentIDs, t.assignmentID)
		}
	}

	fetched := c.fetchAll(ctx, assignmentIDs)
	graded := make(map[string]map[string]bool, len(fetched))
	for _, id := range assignmentIDs {
		res := fetched[id]
		if res.err != nil {
			notes.FailedSubmissionFetches = append(notes.FailedSubmissionFetches,
				fmt.Sprintf("assignment %s page %d: %v", id, res.page, res.err))
		}
		byUser := make(map[string]bool, len(res.submissions))
		for _, s := range res.submissions {
			if s.IsGraded() {
				byUser[domain.CanonicalID(s.UserID.String())] = true
			}
		}
		graded[id] = byUser
	}

	out := make([]domain.GradingTopic, 0, len(topics))
	for _, t := range topics {
		topic, skipped := buildTopic(t, teachers, graded[t.assignmentID])
		notes.SkippedPosts += skipped
		out = append(out, topic)
	}

	c.logger.Debug("grading correlation complete",
		slog.Int("topics", len(out)),
		slog.Int("assignments", len(assignmentIDs)),
		slog.Int("failed_fetches", len(notes.FailedSubmissionFetches)))

	return Result{Topics: out, Notes: notes}
}

func groupGradedTopics(posts []domain.DiscussionPost) []*topicPosts {
	var order []*topicPosts
	byID := make(map[string]*topicPosts)
	for _, p := range posts {
		t, ok := byID[p.TopicID]
		if !ok {
			t = &topicPosts{id: p.TopicID, title: p.TopicTitle}
			byID[p.TopicID] = t
			order = append(order, t)
		}
		if t.assignmentID == "" {
			t.assignmentID = strings.TrimSpace(p.AssignmentID)
		}
		t.posts = append(t.posts, p)
	}

	graded := order[:0]
	for _, t := range order {
		if t.assignmentID != "" {
			graded = append(graded, t)
		}
	}
	return graded
}

type student struct {
	status   domain.StudentStatus
	topLevel bool
	feedback map[string]bool
}

// buildTopic returns the rollup of one topic and the number of student posts
// skipped for lack of an author name.
func buildTopic(t *topicPosts, teachers map[string]bool, graded map[string]bool) (domain.GradingTopic, int) {
	topic := domain.GradingTopic{
		ID:                    t.id,
		Title:                 t.title,
		AssignmentID:          t.assignmentID,
		TeacherReplyStats:     make(map[string]int),
		AllStudentsWithStatus: []domain.StudentStatus{},
		StudentsNeedingGrades: []domain.StudentStatus{},
	}

	var order []string
	students := make(map[string]*student)
	postOwner := make(map[string]*student)
	var teacherPosts []domain.DiscussionPost
	skipped := 0

	for _, p := range t.posts {
		uid := domain.CanonicalID(p.AuthorUserID.String())
		if teachers[uid] {
			topic.TeacherReplyStats[teacherName(p)]++
			teacherPosts = append(teacherPosts, p)
			continue
		}

		name := strings.TrimSpace(p.AuthorDisplayName)
		if name == "" {
			skipped++
			continue
		}
		key := uid
		if key == "" {
			key = "name:" + strings.ToLower(name)
		}

		s, ok := students[key]
		if !ok {
			s = &student{
				status: domain.StudentStatus{
					Name:            name,
					UserID:          domain.UserID(uid),
					IsGraded:        uid != "" && graded[uid],
					TeacherFeedback: []string{},
				},
				feedback: make(map[string]bool),
			}
			students[key] = s
			order = append(order, key)
		}
		if !p.IsReply() {
			postOwner[p.ID] = s
		}
		s.consider(p)
	}

	for _, p := range teacherPosts {
		if !p.IsReply() {
			continue
		}
		if s, ok := postOwner[p.ParentID]; ok {
			s.feedback[teacherName(p)] = true
		}
	}

	for _, key := range order {
		s := students[key]
		for name := range s.feedback {
			s.status.TeacherFeedback = append(s.status.TeacherFeedback, name)
		}
		sort.Strings(s.status.TeacherFeedback)
		topic.AllStudentsWithStatus = append(topic.AllStudentsWithStatus, s.status)
	}

	sort.SliceStable(topic.AllStudentsWithStatus, func(i, j int) bool {
		a, b := topic.AllStudentsWithStatus[i], topic.AllStudentsWithStatus[j]
		if !a.PostDate.Equal(b.PostDate) {
			return a.PostDate.Before(b.PostDate)
		}
		return a.PostID < b.PostID
	})
	for _, st := range topic.AllStudentsWithStatus {
		if !st.IsGraded {
			topic.StudentsNeedingGrades = append(topic.StudentsNeedingGrades, st)
		}
	}
	return topic, skipped
}

// consider makes p the student's representative post if it is the earliest
// top-level post seen so far. Replies stand in only until a top-level post
// turns up.
func (s *student) consider(p domain.DiscussionPost) {
	top := !p.IsReply()
	switch {
	case s.status.PostID == "":
	case top && !s.topLevel:
	case top == s.topLevel && earlier(p.CreatedAt, p.ID, s.status.PostDate, s.status.PostID):
	default:
		return
	}
	s.topLevel = top
	s.status.PostID = p.ID
	s.status.PostDate = p.CreatedAt
}

func earlier(at time.Time, id string, than time.Time, thanID string) bool {
	if !at.Equal(than) {
		return at.Before(than)
	}
	return id < thanID
}

func teacherName(p domain.DiscussionPost) string {
	if n := strings.TrimSpace(p.AuthorDisplayName); n != "" {
		return n
	}
	return "Teacher " + p.AuthorUserID.String()
}
