// Package http implements the HTTP handlers of the rosterlink web service.
// Handlers stay thin: they parse and validate the request, call a service
// and render the result. Every failure goes through errors.ErrorHandler and
// reaches the client as RFC 7807 problem details.
//
// # Routes
//
//	POST   /api/reconcile                      run a reconciliation
//	GET    /api/courses/{courseID}/grading     correlate discussion grading
//	DELETE /api/courses/{courseID}/cache       drop cached course data
//	GET    /api/health, /api/health/ready, /api/health/live, /api/version
//	GET    /metrics                            Prometheus exposition
//
// Result endpoints answer with a JSON envelope by default. Passing
// ?format=xlsx or ?format=csv streams the same result as a spreadsheet.
//
// # Testing
//
// Handlers depend on small interfaces so tests drive them with testify mocks
// through httptest.
package http
