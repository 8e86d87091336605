// Package assets turns a tenant's raw asset list into brands and a
// best-effort domain to brand mapping.
//
// The mapping is a heuristic, not a join. A domain is attributed to the
// first brand whose official website contains either the whole domain or,
// for labels longer than three characters, the domain's leading label.
// Brands with an empty or missing website never match, and ambiguous
// labels go to whichever brand comes first in the asset list.
package assets

import (
	"slices"
	"strings"

	"github.com/jmerrifield20/riskposture/internal/model"
)

// minLabelLen is the shortest leading label eligible for the fallback match.
const minLabelLen = 4

// Reconcile partitions active assets into brands and domains and maps each
// domain to a brand name. Unmatched domains map to "".
func Reconcile(raw []model.Asset) ([]model.Brand, map[string]string) {
	var brands []model.Brand
	var domains []model.Domain

	for _, a := range raw {
		if !a.IsActive() {
			continue
		}
		switch a.Category {
		case model.AssetBrand:
			b := model.Brand{Name: a.Name, Key: a.Key}
			b.OfficialWebsite, _ = a.Property(model.PropertyOfficialWebsite)
			b.Size, _ = a.Property(model.PropertyBrandSize)
			brands = append(brands, b)
		case model.AssetDomain:
			if a.Name != "" {
				domains = append(domains, model.Domain{Name: a.Name})
			}
		}
	}

	mapping := make(map[string]string, len(domains))
	for _, d := range domains {
		mapping[d.Name] = MatchDomain(d.Name, brands)
	}
	return brands, mapping
}

// MatchDomain returns the name of the first brand the domain can be
// attributed to, or "".
func MatchDomain(domain string, brands []model.Brand) string {
	host := strings.ToLower(strings.TrimSpace(domain))
	if host == "" {
		return ""
	}
	label, _, _ := strings.Cut(host, ".")

	for _, b := range brands {
		site := strings.ToLower(b.OfficialWebsite)
		if site == "" {
			continue
		}
		if strings.Contains(site, host) {
			return b.Name
		}
		if len(label) >= minLabelLen && strings.Contains(site, label) {
			return b.Name
		}
	}
	return ""
}

// DomainsOf returns the domains mapped to brand, in sorted order.
func DomainsOf(mapping map[string]string, brand string) []string {
	var out []string
	for d, b := range mapping {
		if b == brand {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out
}
