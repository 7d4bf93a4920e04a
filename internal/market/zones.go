package market

import (
	"fmt"
	"sort"

	"github.com/mtorresco/franchise-expansion/internal/geo"
)

const (
	highPriorityFloor = 0.5
	significantGap    = 0.6
	revenuePerStore   = 500_000.0
	defaultZoneRadius = 5.0
)

// Capacity derived from opportunity impact is scaled by opportunity type:
// an underserved area supports more stores than a competitor weakness of
// the same nominal impact.
var opportunityScale = map[string]float64{
	"underserved_area":    1.2,
	"traffic_corridor":    1.0,
	"demographic_shift":   1.0,
	"competitor_weakness": 0.8,
}

// DeriveZones turns an analysis into strategic zones: one per high-priority
// opportunity plus one per significant competitive gap, sorted by priority
// descending. Zones inherit the analysis confidence.
func DeriveZones(analysis MarketAnalysis, bounds geo.Bounds) []StrategicZone {
	centerLat, centerLng := bounds.Center()
	zones := make([]StrategicZone, 0, len(analysis.Opportunities)+len(analysis.CompetitiveGaps))

	for i, opp := range analysis.Opportunities {
		if opp.Priority < highPriorityFloor {
			continue
		}
		scale, ok := opportunityScale[opp.Type]
		if !ok {
			scale = 1.0
		}
		lat, lng := opp.Lat, opp.Lng
		if lat == 0 && lng == 0 {
			lat, lng = centerLat, centerLng
		}
		zones = append(zones, StrategicZone{
			Name:              fmt.Sprintf("%s opportunity %d", analysis.Region, i+1),
			CenterLat:         lat,
			CenterLng:         lng,
			RadiusKm:          defaultZoneRadius,
			Priority:          opp.Priority,
			Characteristics:   []string{opp.Type, opp.Description},
			EstimatedCapacity: int(opp.Impact * 5 * scale),
			Confidence:        analysis.Confidence,
		})
	}

	for i, gap := range analysis.CompetitiveGaps {
		if gap.GapSize <= significantGap {
			continue
		}
		lat, lng := gap.Lat, gap.Lng
		if lat == 0 && lng == 0 {
			lat, lng = centerLat, centerLng
		}
		zones = append(zones, StrategicZone{
			Name:              fmt.Sprintf("%s gap %d", analysis.Region, i+1),
			CenterLat:         lat,
			CenterLng:         lng,
			RadiusKm:          defaultZoneRadius,
			Priority:          gap.GapSize,
			Characteristics:   []string{"competitive_gap", gap.Description},
			EstimatedCapacity: int(gap.EstimatedRevenue / revenuePerStore),
			Confidence:        analysis.Confidence,
		})
	}

	sort.SliceStable(zones, func(i, j int) bool {
		return zones[i].Priority > zones[j].Priority
	})
	return zones
}
