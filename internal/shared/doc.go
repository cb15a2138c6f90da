// Package shared holds helpers used by more than one package that belong to
// no single layer.
//
// testutil captures slog output so tests can assert on what was logged:
//
//	logger, logs := testutil.NewTestLogger(t)
//	svc := services.NewGradingService(api, c, 0, nil, logger)
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelWarn, "canvas fetch failed")
package shared
