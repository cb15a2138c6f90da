package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// UserID is an LMS user identifier. Upstream payloads carry ids both as JSON
// numbers and as strings; UserID accepts either and stores the canonical form.
type UserID string

// UnmarshalJSON accepts a JSON number, a JSON string or null.
func (id *UserID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("user id: %w", err)
		}
		*id = UserID(CanonicalID(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("user id: %w", err)
	}
	*id = UserID(CanonicalID(n.String()))
	return nil
}

// String returns the id as a string.
func (id UserID) String() string { return string(id) }

// CanonicalID reduces numeric ids to a single decimal representation so that
// "42", "042", "42.0" and 42 compare equal. Non-numeric ids are trimmed only.
func CanonicalID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(n, 10)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// CanvasUser is a deduplicated author from the LMS discussion feed.
type CanvasUser struct {
	ID          UserID `json:"id"`
	DisplayName string `json:"display_name"`
	UserName    string `json:"user_name,omitempty"`
	Email       string `json:"email,omitempty"`
	PostCount   int    `json:"post_count"`
}

// DiscussionPost is one entry of a discussion topic, top-level or reply.
type DiscussionPost struct {
	ID                string    `json:"id"`
	AuthorDisplayName string    `json:"author_display_name"`
	AuthorUserID      UserID    `json:"author_user_id"`
	TopicID           string    `json:"topic_id"`
	TopicTitle        string    `json:"topic_title"`
	AssignmentID      string    `json:"assignment_id,omitempty"`
	ParentID          string    `json:"parent_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	Message           string    `json:"message,omitempty"`
}

// IsReply reports whether the post answers another post.
func (p DiscussionPost) IsReply() bool { return p.ParentID != "" }

// Submission is a graded (or not yet graded) assignment submission.
type Submission struct {
	AssignmentID string  `json:"assignment_id"`
	UserID       UserID  `json:"user_id"`
	Grade        *string `json:"grade"`
}

// IsGraded reports whether the submission carries a non-empty grade. A
// whitespace grade was entered by someone and counts.
func (s Submission) IsGraded() bool {
	return s.Grade != nil && *s.Grade != ""
}

// GradingTopic is the grading rollup of one graded discussion topic.
type GradingTopic struct {
	ID                    string          `json:"id"`
	Title                 string          `json:"title"`
	AssignmentID          string          `json:"assignment_id"`
	TeacherReplyStats     map[string]int  `json:"teacher_reply_stats"`
	AllStudentsWithStatus []StudentStatus `json:"all_students_with_status"`
	StudentsNeedingGrades []StudentStatus `json:"students_needing_grades"`
}

// StudentStatus is one student's grading and feedback state within a topic.
type StudentStatus struct {
	Name            string    `json:"name"`
	UserID          UserID    `json:"user_id"`
	PostDate        time.Time `json:"post_date"`
	PostID          string    `json:"post_id"`
	IsGraded        bool      `json:"is_graded"`
	TeacherFeedback []string  `json:"teacher_feedback"`
}

// CollectAuthors deduplicates post authors by user id, in first-seen order,
// counting their posts. Authors listed in exclude are left out.
func CollectAuthors(posts []DiscussionPost, exclude []UserID) []CanvasUser {
	skip := make(map[string]bool, len(exclude))
	for _, id := range exclude {
		skip[CanonicalID(id.String())] = true
	}
	var users []CanvasUser
	index := make(map[string]int)
	for _, p := range posts {
		key := CanonicalID(p.AuthorUserID.String())
		if key == "" {
			key = "name:" + strings.ToLower(strings.TrimSpace(p.AuthorDisplayName))
			if key == "name:" {
				continue
			}
		}
		if skip[key] {
			continue
		}
		if i, ok := index[key]; ok {
			users[i].PostCount++
			if users[i].DisplayName == "" {
				users[i].DisplayName = strings.TrimSpace(p.AuthorDisplayName)
			}
			continue
		}
		index[key] = len(users)
		users = append(users, CanvasUser{
			ID:          UserID(CanonicalID(p.AuthorUserID.String())),
			DisplayName: strings.TrimSpace(p.AuthorDisplayName),
			PostCount:   1,
		})
	}
	return users
}
