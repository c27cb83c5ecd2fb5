// Package provider is the static catalogue of supported storage backends.
// It is used to validate tenant configuration requests and to populate the
// configuration UI. Read-only, no failure modes.
package provider

// Well-known provider ids.
const (
	Default      = "default"
	AWSS3        = "aws-s3"
	S3Compatible = "s3-compatible"
)

// Feature flags a provider may advertise.
const (
	FeatureMultipart      = "multipart"
	FeaturePresign        = "presign"
	FeatureCustomEndpoint = "custom-endpoint"
	FeaturePathStyle      = "path-style"
)

type Provider struct {
	ID               string   `json:"id"`
	DisplayName      string   `json:"display_name"`
	Description      string   `json:"description"`
	SupportedRegions []string `json:"supported_regions"`
	Features         []string `json:"features"`
	// RequiresEndpoint is true when the tenant must supply a custom endpoint.
	RequiresEndpoint bool `json:"requires_endpoint"`
	// AnyRegion relaxes region validation for self-hosted deployments.
	AnyRegion bool `json:"any_region"`
}

var awsRegions = []string{
	"us-east-1", "us-east-2", "us-west-1", "us-west-2",
	"eu-west-1", "eu-west-2", "eu-west-3", "eu-central-1", "eu-north-1",
	"ap-southeast-1", "ap-southeast-2", "ap-northeast-1", "ap-south-1",
	"sa-east-1", "ca-central-1",
}

var catalogue = []Provider{
	{
		ID:               Default,
		DisplayName:      "Managed storage",
		Description:      "Platform-managed bucket; no tenant credentials required.",
		SupportedRegions: awsRegions,
		Features:         []string{FeatureMultipart, FeaturePresign},
	},
	{
		ID:               AWSS3,
		DisplayName:      "Amazon S3",
		Description:      "Tenant-owned bucket on Amazon S3.",
		SupportedRegions: awsRegions,
		Features:         []string{FeatureMultipart, FeaturePresign},
	},
	{
		ID:               S3Compatible,
		DisplayName:      "S3-compatible",
		Description:      "Self-hosted or third-party S3-compatible storage (MinIO, R2, Wasabi).",
		SupportedRegions: []string{"us-east-1"},
		Features:         []string{FeatureMultipart, FeaturePresign, FeatureCustomEndpoint, FeaturePathStyle},
		RequiresEndpoint: true,
		AnyRegion:        true,
	},
}

// List returns the full catalogue. The returned slice is shared; callers must
// not mutate it.
func List() []Provider {
	return catalogue
}

// ByID returns the provider with the given id, or false when unknown.
func ByID(id string) (Provider, bool) {
	for _, p := range catalogue {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}

// ValidateRegion reports whether region is acceptable for the provider.
// Self-hosted providers accept any non-empty region.
func ValidateRegion(id, region string) bool {
	p, ok := ByID(id)
	if !ok {
		return false
	}
	if p.AnyRegion {
		return region != ""
	}
	for _, r := range p.SupportedRegions {
		if r == region {
			return true
		}
	}
	return false
}

// Supports reports whether the provider advertises the given feature.
func Supports(id, feature string) bool {
	p, ok := ByID(id)
	if !ok {
		return false
	}
	for _, f := range p.Features {
		if f == feature {
			return true
		}
	}
	return false
}
