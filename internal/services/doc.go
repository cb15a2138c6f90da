// Package services implements the use cases of rosterlink on top of the
// reconcile and grading cores. It sits between the HTTP handlers and CLI on
// one side and Canvas, Google Sheets and the result cache on the other.
//
// # Architecture
//
// Services follow these principles:
//
//	1. Dependencies are injected as small interfaces (CanvasAPI,
//	   RegistrationSheet, cache.Cache) so tests can substitute fakes
//	2. Every blocking call takes a context.Context
//	3. Results are wrapped in a domain.Envelope carrying a run id, whether
//	   the data was fresh or cached, and the run's processing notes
//
// # Available Services
//
//	- ReconciliationService: merges Canvas users, registrations and attendance
//	- GradingService: correlates discussion posts with submissions
//	- HealthService: liveness, readiness and version reporting
//
// # Error Handling
//
// Bad input rows and failed fetches degrade a run instead of failing it and
// are counted in the envelope's notes. Only unusable requests fail, with one
// of the sentinel errors in errors.go:
//
//	env, err := svc.Correlate(ctx, courseID, false)
//	if errors.Is(err, services.ErrCanvasUnavailable) {
//	    // Canvas is not configured or the post listing failed
//	}
//
// # Testing
//
// Collaborators are mocked with testify:
//
//	canvas := new(MockCanvasAPI)
//	canvas.On("FetchDiscussionPosts", mock.Anything, "42").Return(posts, nil)
package services
