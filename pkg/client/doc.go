// Package client is the Go SDK for the threat-intelligence ticketing API that
// feeds the risk posture engine.
//
// It provides an authenticated transport with uniform error translation, a
// page-cursor fetcher, and typed calls for every endpoint the scoring
// pipelines consume.
//
// # Connecting
//
//	c, err := client.New(client.DefaultBaseURL,
//	    client.WithBearerToken(apiKey),
//	    client.WithRateLimit(5, 5),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # Fetching incidents
//
// Incidents returns normalized records for a date range. The date filter can
// target either the ticket open date or the confirmed-incident date:
//
//	incidents, err := c.Incidents(ctx, client.IncidentQuery{
//	    CustomerID: "ACME",
//	    From:       time.Now().AddDate(0, 0, -30),
//	    To:         time.Now(),
//	    DateField:  client.DateConfirmed,
//	})
//
// # Query parameters
//
// The API expresses ranges with repeated keys ("open.date=ge:..." and
// "open.date=le:..."), so requests take an ordered Params list rather than a
// map:
//
//	var p client.Params
//	p.Add("open.date", "ge:2024-01-01T00:00:00")
//	p.Add("open.date", "le:2024-01-31T23:59:59")
//	body, err := c.Get(ctx, "/tickets-api/tickets", p)
//
// # Errors
//
// Every call returns one of *NetworkError, *RateLimitedError, *APIError or
// *ParseError. A 429 is never retried by the client; check for it with
// errors.Is(err, client.ErrRateLimited) and decide at the call site.
// IsNoAccess reports 401/403 responses, which callers of optional endpoints
// treat as a neutral signal.
//
// # Pagination
//
// FetchAll walks page=1,2,... and stops at the first empty or short page. A
// server that returns a short page before the real end of the data truncates
// the result; the API does not do that today.
package client
