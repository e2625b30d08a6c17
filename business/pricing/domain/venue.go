// Package domain contains the core domain types for the pricing context.
package domain

// VenueID names a configured liquidity venue.
type VenueID string

// VenueKind tags how a venue produces quotes.
type VenueKind int

const (
	// KindConstantProduct venues derive output from pool reserves.
	KindConstantProduct VenueKind = iota + 1
	// KindRouted venues delegate to an external quoting service.
	KindRouted
)

func (k VenueKind) String() string {
	switch k {
	case KindConstantProduct:
		return "constant_product"
	case KindRouted:
		return "routed"
	default:
		return "unknown"
	}
}

// ParseVenueKind maps the configuration spelling to a VenueKind.
func ParseVenueKind(s string) (VenueKind, bool) {
	switch s {
	case "constant_product":
		return KindConstantProduct, true
	case "routed":
		return KindRouted, true
	}
	return 0, false
}
