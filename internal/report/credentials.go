package report

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmerrifield20/riskposture/internal/kri"
	"github.com/jmerrifield20/riskposture/pkg/client"
)

// hashedPasswordTypes are the password types the exposure API reports for
// credentials leaked in hashed form.
var hashedPasswordTypes = map[string]bool{
	"BCRYPT": true,
	"SHA256": true,
	"SHA512": true,
	"PBKDF2": true,
}

// CredentialSummary counts exposed credentials by password and leak format.
type CredentialSummary struct {
	Total int `json:"total"`

	Plain           int `json:"plain"`
	Hashed          int `json:"hashed"`
	UnknownPassword int `json:"unknown_password"`

	StealerLog  int `json:"stealer_log"`
	Combolist   int `json:"combolist"`
	OtherFormat int `json:"other_format"`

	Sources map[string]int `json:"sources,omitempty"`
}

// Summarize counts credentials.
func Summarize(creds []client.Credential) CredentialSummary {
	s := CredentialSummary{Total: len(creds)}
	for _, c := range creds {
		pt := strings.ToUpper(strings.TrimSpace(c.PasswordType))
		switch {
		case pt == client.PasswordPlain:
			s.Plain++
		case hashedPasswordTypes[pt]:
			s.Hashed++
		default:
			s.UnknownPassword++
		}

		switch c.LeakFormat {
		case client.FormatStealerLog:
			s.StealerLog++
		case client.FormatCombolist:
			s.Combolist++
		default:
			s.OtherFormat++
		}

		if c.Source != "" {
			if s.Sources == nil {
				s.Sources = make(map[string]int)
			}
			s.Sources[c.Source]++
		}
	}
	return s
}

// CredentialReport is the exposed-credential summary of a period.
type CredentialReport struct {
	CustomerID string     `json:"customer_id"`
	Period     kri.Period `json:"period"`
	Status     string     `json:"status"`
	CredentialSummary
}

// Credentials summarizes exposed credentials detected in the period. An
// empty status selects the open detections.
func (r *Runner) Credentials(ctx context.Context, p kri.Period, status string) (*CredentialReport, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if status == "" {
		status = client.DefaultCredentialStatus
	}

	var creds []client.Credential
	err := r.withRetry(ctx, "credentials", func() error {
		var err error
		creds, err = r.src.Credentials(ctx, client.CredentialQuery{
			CustomerID: r.customerID,
			From:       p.From,
			To:         p.To,
			Status:     status,
		})
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("fetch credentials: %w", err)
	}
	return &CredentialReport{
		CustomerID:        r.customerID,
		Period:            p,
		Status:            status,
		CredentialSummary: Summarize(creds),
	}, nil
}
