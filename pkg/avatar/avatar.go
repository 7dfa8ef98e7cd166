// Package avatar builds deterministic avatar image URLs for users and
// agents. The same seed always yields the same image, so identities keep a
// stable face across sessions without storing any image data.
package avatar

import (
	"fmt"
	"net/url"
)

// Variant selects the avatar art style.
type Variant string

const (
	// VariantBot renders a neutral robot face, used for AI agents.
	VariantBot Variant = "botttsNeutral"

	// VariantInitials renders the seed's initials, used for humans without
	// a profile image.
	VariantInitials Variant = "initials"
)

const (
	baseURL = "https://api.dicebear.com/9.x"
	size    = 128
	radius  = 50
)

// URL returns the avatar image URL for the given seed and variant. The seed
// is URL-escaped, so display names are safe to pass directly.
func URL(seed string, variant Variant) string {
	if seed == "" {
		seed = "anonymous"
	}
	if variant == "" {
		variant = VariantInitials
	}

	return fmt.Sprintf("%s/%s/svg?seed=%s&size=%d&radius=%d",
		baseURL, variant, url.QueryEscape(seed), size, radius)
}
