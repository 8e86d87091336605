package assets

import (
	"testing"

	"github.com/jmerrifield20/riskposture/internal/model"
)

func brandAsset(name, key, website string) model.Asset {
	a := model.Asset{Name: name, Key: key, Category: model.AssetBrand}
	if website != "" {
		a.Properties = append(a.Properties, model.AssetProperty{Name: model.PropertyOfficialWebsite, Value: website})
	}
	return a
}

func domainAsset(name string) model.Asset {
	return model.Asset{Name: name, Key: name, Category: model.AssetDomain}
}

func TestMatchDomain(t *testing.T) {
	brands := []model.Brand{
		{Name: "Acme", OfficialWebsite: "https://www.Acme.com"},
		{Name: "Shopfront", OfficialWebsite: "https://shop.example.org"},
		{Name: "Abc", OfficialWebsite: "https://abc.io"},
	}
	tests := []struct {
		domain string
		want   string
	}{
		{"acme.com", "Acme"},           // whole domain inside the website
		{"ACME.com", "Acme"},           // case-insensitive
		{"acme.com.br", "Acme"},        // label "acme" has 4 chars, fallback applies
		{"shop.acme.com", "Shopfront"}, // label "shop" has 4 chars and only the second brand's site contains it
		{"abc.net", ""},                // label "abc" has 3 chars, fallback does not apply
		{"abc.io", "Abc"},              // whole domain still matches regardless of label length
		{"unrelated.net", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			if got := MatchDomain(tt.domain, brands); got != tt.want {
				t.Errorf("MatchDomain(%q) = %q, want %q", tt.domain, got, tt.want)
			}
		})
	}
}

func TestMatchDomain_LabelBoundary(t *testing.T) {
	// A four-letter label matches through the fallback; a three-letter label
	// with the same website never does.
	brands := []model.Brand{{Name: "Shop", OfficialWebsite: "https://www.shopping.com"}}
	if got := MatchDomain("shop.acme.net", brands); got != "Shop" {
		t.Errorf("4-char label: got %q, want Shop", got)
	}
	if got := MatchDomain("sho.acme.net", brands); got != "" {
		t.Errorf("3-char label: got %q, want no match", got)
	}
}

func TestMatchDomain_FirstBrandWins(t *testing.T) {
	brands := []model.Brand{
		{Name: "First", OfficialWebsite: "https://acme.com/first"},
		{Name: "Second", OfficialWebsite: "https://acme.com"},
	}
	if got := MatchDomain("acme.com", brands); got != "First" {
		t.Errorf("got %q, want First (list order, not best match)", got)
	}
}

func TestMatchDomain_EmptyWebsiteNeverMatches(t *testing.T) {
	brands := []model.Brand{{Name: "NoSite"}, {Name: "Acme", OfficialWebsite: "acme.com"}}
	if got := MatchDomain("acme.com", brands); got != "Acme" {
		t.Errorf("got %q, want Acme", got)
	}
}

func TestReconcile(t *testing.T) {
	inactive := false
	active := true
	raw := []model.Asset{
		brandAsset("Acme", "b-acme", "https://www.acme.com"),
		{Name: "Retired", Key: "b-old", Category: model.AssetBrand, Active: &inactive},
		{Name: "Sized", Key: "b-sized", Category: model.AssetBrand, Active: &active, Properties: []model.AssetProperty{
			{Name: model.PropertyBrandSize, Value: "LARGE"},
		}},
		domainAsset("acme.com"),
		domainAsset("acme-promo.net"),
		domainAsset("zzz.org"),
		{Name: "gone.com", Category: model.AssetDomain, Active: &inactive},
		{Name: "", Category: model.AssetDomain},
		{Name: "ignored", Category: "SOCIAL_PROFILE"},
	}

	brands, mapping := Reconcile(raw)

	if len(brands) != 2 {
		t.Fatalf("got %d brands, want 2: %+v", len(brands), brands)
	}
	if brands[0].Name != "Acme" || brands[0].OfficialWebsite != "https://www.acme.com" {
		t.Errorf("brand[0] = %+v", brands[0])
	}
	if brands[1].Size != "LARGE" || brands[1].OfficialWebsite != "" {
		t.Errorf("brand[1] = %+v", brands[1])
	}

	want := map[string]string{
		"acme.com":       "Acme",
		"acme-promo.net": "",
		"zzz.org":        "",
	}
	if len(mapping) != len(want) {
		t.Fatalf("mapping = %v, want %v", mapping, want)
	}
	for d, b := range want {
		got, ok := mapping[d]
		if !ok || got != b {
			t.Errorf("mapping[%q] = %q (present=%v), want %q", d, got, ok, b)
		}
	}

	if got := DomainsOf(mapping, ""); len(got) != 2 || got[0] != "acme-promo.net" || got[1] != "zzz.org" {
		t.Errorf("DomainsOf unmatched = %v", got)
	}
}
