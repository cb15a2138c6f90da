package canvas

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"rosterlink/internal/grading"
	"rosterlink/pkg/contracts/domain"
)

// teachingRoles are the enrollment types counted as teaching staff.
var teachingRoles = []string{"TeacherEnrollment", "TaEnrollment", "DesignerEnrollment"}

type enrollmentJSON struct {
	UserID flexID `json:"user_id"`
	Type   string `json:"type"`
}

type submissionJSON struct {
	AssignmentID flexID  `json:"assignment_id"`
	UserID       flexID  `json:"user_id"`
	Grade        *string `json:"grade"`
}

// FetchCourseTeacherIDs returns the ids of users enrolled as teacher, TA or
// designer, deduplicated.
func (c *Client) FetchCourseTeacherIDs(ctx context.Context, courseID string) ([]domain.UserID, error) {
	q := url.Values{}
	for _, role := range teachingRoles {
		q.Add("type[]", role)
	}
	enrollments, err := listAll[enrollmentJSON](ctx, c, coursePath(courseID, "enrollments"), q)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}

	allowed := make(map[string]bool, len(teachingRoles))
	for _, r := range teachingRoles {
		allowed[r] = true
	}
	seen := make(map[domain.UserID]bool)
	var ids []domain.UserID
	for _, e := range enrollments {
		if !allowed[e.Type] || e.UserID == "" || seen[e.UserID] {
			continue
		}
		seen[e.UserID] = true
		ids = append(ids, e.UserID)
	}
	return ids, nil
}

// FetchSubmissionsPage returns one page of up to 100 submissions.
func (c *Client) FetchSubmissionsPage(ctx context.Context, courseID, assignmentID string, page int) ([]domain.Submission, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(grading.PageSize))
	q.Set("page", strconv.Itoa(page))

	var raw []submissionJSON
	path := coursePath(courseID, "assignments", url.PathEscape(assignmentID), "submissions")
	if err := c.getJSON(ctx, path, q, &raw); err != nil {
		return nil, err
	}

	subs := make([]domain.Submission, 0, len(raw))
	for _, s := range raw {
		aid := s.AssignmentID.String()
		if aid == "" {
			aid = assignmentID
		}
		subs = append(subs, domain.Submission{AssignmentID: aid, UserID: s.UserID, Grade: s.Grade})
	}
	return subs, nil
}

// CourseFetcher binds the client to one course as a grading.SubmissionFetcher.
func (c *Client) CourseFetcher(courseID string) grading.SubmissionFetcher {
	return grading.FetcherFunc(func(ctx context.Context, assignmentID string, page int) ([]domain.Submission, error) {
		return c.FetchSubmissionsPage(ctx, courseID, assignmentID, page)
	})
}
