package model

// Asset categories returned by the customers endpoint.
const (
	AssetBrand  = "BRAND"
	AssetDomain = "DOMAIN"
)

// Asset property names.
const (
	PropertyOfficialWebsite = "OFFICIAL_WEBSITE"
	PropertyBrandSize       = "BRAND_SIZE"
)

// AssetProperty is a name/value pair attached to an asset.
type AssetProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Asset is a raw tenant asset as returned by the API. Active is a pointer
// because an absent flag means active.
type Asset struct {
	Key        string          `json:"key"`
	Name       string          `json:"name"`
	Category   string          `json:"category"`
	Active     *bool           `json:"active,omitempty"`
	Properties []AssetProperty `json:"properties,omitempty"`
}

// IsActive reports the asset's active flag, defaulting to true.
func (a Asset) IsActive() bool {
	return a.Active == nil || *a.Active
}

// Property returns the value of the first property with the given name.
func (a Asset) Property(name string) (string, bool) {
	for _, p := range a.Properties {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Brand is a monitored brand of the tenant.
type Brand struct {
	Name            string `json:"name"`
	Key             string `json:"key"`
	OfficialWebsite string `json:"official_website,omitempty"`
	Size            string `json:"size,omitempty"`
}

// Domain is a monitored hostname. It exists to be matched to a Brand.
type Domain struct {
	Name string `json:"name"`
}
