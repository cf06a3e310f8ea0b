// Package client is the HTTP client of the runtime API, used by ohrun.
//
// Built on go-resty/resty with:
//   - go-retryablehttp retrying refused connections only
//   - a token bucket rate limiter
//   - a circuit breaker that ignores errors the server reports on purpose
//
// Server address and key resolve from flags, OH_API_URL/OH_API_KEY, a
// session file (--session-file, OH_SESSION_FILE, or the nearest .oh-session),
// then the default URL.
//
// Example Usage:
//
//	ep := client.Resolver{URL: flagURL, Key: flagKey, Dir: cwd}.Resolve()
//	c := client.New(client.Options{BaseURL: ep.URL, APIKey: ep.Key})
//	obs, err := c.Run(ctx, types.ActionArgs{Command: "ls"})
package client
