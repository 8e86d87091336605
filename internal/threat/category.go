package threat

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/jmerrifield20/riskposture/internal/model"
)

// Category codes.
const (
	Spoofing              = "S"
	Tampering             = "T"
	Repudiation           = "R"
	InformationDisclosure = "I"
	DenialOfService       = "D"
	ElevationOfPrivilege  = "E"
	Unknown               = "U"
)

var categoryNames = map[string]string{
	Spoofing:              "Spoofing (Identity Impersonation)",
	Tampering:             "Tampering (Data Modification)",
	Repudiation:           "Repudiation (Deniability)",
	InformationDisclosure: "Information Disclosure",
	DenialOfService:       "Denial of Service",
	ElevationOfPrivilege:  "Elevation of Privilege",
	Unknown:               "Unclassified",
}

// CategoryName returns the display name of a category code.
func CategoryName(code string) string {
	if n, ok := categoryNames[code]; ok {
		return n
	}
	return code
}

var categoryOf = map[string]string{
	"phishing":                            Spoofing,
	"fake-social-media-profile":           Spoofing,
	"executive-fake-social-media-profile": Spoofing,
	"similar-domain-name":                 Spoofing,

	"fraudulent-brand-use": Tampering,
	"fake-mobile-app":      Tampering,

	"unauthorized-sale":         Repudiation,
	"unauthorized-distribution": Repudiation,

	"corporate-credential-leak":   InformationDisclosure,
	"code-secret-leak":            InformationDisclosure,
	"database-exposure":           InformationDisclosure,
	"data-exposure-website":       InformationDisclosure,
	"data-exposure-message":       InformationDisclosure,
	"other-sensitive-data":        InformationDisclosure,
	"executive-credential-leak":   InformationDisclosure,
	"executive-personalinfo-leak": InformationDisclosure,

	"ransomware-attack":       DenialOfService,
	"infrastructure-exposure": DenialOfService,
	"malware":                 DenialOfService,

	"infostealer-credential": ElevationOfPrivilege,
	"executive-card-leak":    ElevationOfPrivilege,
	"executive-mobile-phone": ElevationOfPrivilege,
}

// UnknownPolicy decides where types missing from the table go.
type UnknownPolicy string

const (
	// DefaultInformationDisclosure files unknown types under I.
	DefaultInformationDisclosure UnknownPolicy = "information-disclosure"
	// UnknownBucket files unknown types under their own U category.
	UnknownBucket UnknownPolicy = "unknown"
)

// ParseUnknownPolicy accepts the policy names; empty selects the default.
func ParseUnknownPolicy(s string) (UnknownPolicy, error) {
	switch UnknownPolicy(s) {
	case "", DefaultInformationDisclosure:
		return DefaultInformationDisclosure, nil
	case UnknownBucket:
		return UnknownBucket, nil
	default:
		return "", fmt.Errorf("unknown category policy %q", s)
	}
}

// CategoryShare is the aggregate of one category over a batch.
type CategoryShare struct {
	Code       string   `json:"code"`
	Name       string   `json:"name"`
	Count      int      `json:"count"`
	Percentage float64  `json:"percentage"`
	Types      []string `json:"types"`
}

// Classifier maps threat types to categories.
type Classifier struct {
	policy UnknownPolicy
}

// NewClassifier returns a Classifier using policy for unknown types.
func NewClassifier(policy UnknownPolicy) *Classifier {
	if policy == "" {
		policy = DefaultInformationDisclosure
	}
	return &Classifier{policy: policy}
}

// Policy returns the unknown-type policy in effect.
func (c *Classifier) Policy() UnknownPolicy { return c.policy }

// Classify returns the category code of threatType.
func (c *Classifier) Classify(threatType string) string {
	if code, ok := categoryOf[threatType]; ok {
		return code
	}
	if c.policy == UnknownBucket {
		return Unknown
	}
	return InformationDisclosure
}

// Aggregate counts incidents per category. Categories with no incidents
// are omitted; the rest are sorted by count descending, then code.
func (c *Classifier) Aggregate(incidents []model.Incident) []CategoryShare {
	counts := make(map[string]int)
	types := make(map[string]map[string]struct{})
	for _, inc := range incidents {
		code := c.Classify(inc.Type)
		counts[code]++
		if types[code] == nil {
			types[code] = make(map[string]struct{})
		}
		types[code][inc.Type] = struct{}{}
	}

	total := len(incidents)
	out := make([]CategoryShare, 0, len(counts))
	for code, n := range counts {
		share := CategoryShare{
			Code:  code,
			Name:  CategoryName(code),
			Count: n,
		}
		if total > 0 {
			share.Percentage = float64(n) / float64(total) * 100
		}
		for t := range types[code] {
			share.Types = append(share.Types, t)
		}
		slices.Sort(share.Types)
		out = append(out, share)
	}

	slices.SortFunc(out, func(a, b CategoryShare) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.Code, b.Code)
	})
	return out
}
