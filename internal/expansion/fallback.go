package expansion

import (
	"fmt"
	"hash/fnv"
	"math/rand"

	"github.com/google/uuid"

	"github.com/mtorresco/franchise-expansion/internal/geo"
	"github.com/mtorresco/franchise-expansion/internal/pipeline"
)

const fallbackConfidence = 0.2

func newID() string { return uuid.NewString() }

// fallbackCandidates produces placeholder candidates scattered inside the
// country's bounding box. The generator is seeded from the filter so the
// same request yields the same placements.
func fallbackCandidates(filter RegionFilter, count int) []pipeline.Candidate {
	bounds := geo.CountryBounds(filter.Country)
	region := filter.region()

	h := fnv.New64a()
	h.Write([]byte(region))
	rng := rand.New(rand.NewSource(int64(h.Sum64())))

	out := make([]pipeline.Candidate, count)
	for i := range out {
		lat := bounds.MinLat + rng.Float64()*(bounds.MaxLat-bounds.MinLat)
		lng := bounds.MinLng + rng.Float64()*(bounds.MaxLng-bounds.MinLng)
		out[i] = pipeline.Candidate{
			ID:              uuid.NewString(),
			Region:          region,
			Country:         filter.Country,
			Lat:             lat,
			Lng:             lng,
			DemandScore:     fallbackConfidence,
			PopulationScore: fallbackConfidence,
			FootfallIndex:   fallbackConfidence,
			IncomeIndex:     fallbackConfidence,
			Rationale:       fmt.Sprintf("Placeholder site %d in %s; AI generation disabled", i+1, region),
			Source:          pipeline.SourceFallback,
			Rank:            i + 1,
		}
	}
	return out
}
