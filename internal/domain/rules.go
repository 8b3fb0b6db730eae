package domain

import "github.com/pkordes/nyc-taxi/internal/geo"

// RuleSet holds every threshold the pipeline judges records against. It is
// versioned so stored runs can say which rules produced them.
type RuleSet struct {
	Version string

	// Box must contain both pickup and dropoff.
	Box geo.BoundingBox

	// MaxSpeedKmh is the highest average speed accepted, inclusive.
	MaxSpeedKmh float64

	// MinFare and MaxFare bound a present fare, inclusive.
	MinFare float64
	MaxFare float64

	// MilesToKm converts distances reported in miles.
	MilesToKm float64

	// FarePerKmEpsilon is added to the distance when computing fare per km
	// so that zero-distance trips stay finite.
	FarePerKmEpsilon float64
}

// RulesV1 is the rule set currently in force.
var RulesV1 = RuleSet{
	Version:          "v1",
	Box:              geo.NYC,
	MaxSpeedKmh:      120,
	MinFare:          0,
	MaxFare:          500,
	MilesToKm:        1.60934,
	FarePerKmEpsilon: 1e-6,
}
