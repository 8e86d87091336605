package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const credentialsPath = "/exposure-api/credentials"

// Leak formats reported by the exposure API.
const (
	FormatStealerLog = "STEALER LOG"
	FormatCombolist  = "COMBOLIST"
)

// PasswordPlain marks a credential leaked in clear text.
const PasswordPlain = "PLAIN"

// DefaultCredentialStatus selects detections that are still open.
const DefaultCredentialStatus = "NEW,IN_TREATMENT"

// Credential is one exposed-credential detection. The API uses literal
// dotted keys for nested attributes.
type Credential struct {
	ID           string `json:"id"`
	Status       string `json:"status"`
	User         string `json:"user"`
	Created      string `json:"created"`
	LeakFormat   string `json:"leak.format"`
	PasswordType string `json:"password.type"`
	Source       string `json:"source.name"`
}

// Stealer reports whether the credential came from an infostealer log.
func (c Credential) Stealer() bool { return c.LeakFormat == FormatStealerLog }

// CredentialQuery selects credential detections of one tenant.
type CredentialQuery struct {
	CustomerID string
	From       time.Time
	To         time.Time
	// Status defaults to DefaultCredentialStatus.
	Status string
	// Domain, when set, restricts detections to users containing it.
	Domain string
}

func (q CredentialQuery) params() (Params, error) {
	if q.CustomerID == "" {
		return nil, errors.New("customer id is required")
	}
	status := q.Status
	if status == "" {
		status = DefaultCredentialStatus
	}
	var p Params
	p.Add("customer", q.CustomerID)
	p.Add("status", status)
	if !q.From.IsZero() {
		p.Add("created", "ge:"+q.From.Format("2006-01-02"))
	}
	if !q.To.IsZero() {
		p.Add("created", "le:"+q.To.Format("2006-01-02"))
	}
	if q.Domain != "" {
		p.Add("user", "contains:"+q.Domain)
	}
	return p, nil
}

// Credentials returns every detection matching q.
func (c *Client) Credentials(ctx context.Context, q CredentialQuery) ([]Credential, error) {
	p, err := q.params()
	if err != nil {
		return nil, err
	}
	raw, err := c.FetchAll(ctx, credentialsPath, p, "detections")
	if err != nil {
		return nil, fmt.Errorf("fetch credentials: %w", err)
	}
	out := make([]Credential, 0, len(raw))
	for _, item := range raw {
		var cred Credential
		if err := json.Unmarshal(item, &cred); err != nil {
			return nil, &ParseError{Path: credentialsPath, Err: err}
		}
		out = append(out, cred)
	}
	return out, nil
}

// CredentialTotal returns the server-side count of detections matching q
// without downloading them.
func (c *Client) CredentialTotal(ctx context.Context, q CredentialQuery) (int, error) {
	p, err := q.params()
	if err != nil {
		return 0, err
	}
	p.Add("page", "1")
	p.Add("pageSize", "1")

	var resp struct {
		Pageable struct {
			Total int `json:"total"`
		} `json:"pageable"`
	}
	if err := c.getJSON(ctx, credentialsPath, p, &resp); err != nil {
		return 0, err
	}
	return resp.Pageable.Total, nil
}
