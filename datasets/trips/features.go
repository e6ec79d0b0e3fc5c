package trips

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// NumFeatures is the width of a feature vector.
const NumFeatures = 10

// Feature indices.
const (
	TripCount = iota
	TripsPerMonth
	AvgDuration
	AvgDistance
	CurrentMonth
	Season
	TripType
	DestinationVariability
	RecentTrend
	DaysSinceLastTrip
)

// FeatureNames are the field names in vector order.
var FeatureNames = [NumFeatures]string{
	"trip_count",
	"trips_per_month",
	"avg_duration",
	"avg_distance",
	"current_month",
	"season",
	"trip_type",
	"destination_variability",
	"recent_trend",
	"days_since_last_trip",
}

// DaysScale converts DaysSinceLastTrip back to days.
const DaysScale = 365.0

// TripTypes are the encoded trip categories.
var TripTypes = [...]float64{0.0, 0.33, 0.66, 1.0}

// Features is one synthetic feature vector.
type Features [NumFeatures]float64

// Days returns the denormalized days since the last trip.
func (f Features) Days() float64 {
	return f[DaysSinceLastTrip] * DaysScale
}

// Slice copies the vector into a new slice.
func (f Features) Slice() []float64 {
	return append([]float64(nil), f[:]...)
}

// Mode selects the feature generator.
type Mode int

const (
	// Naive draws every field from U[0,1).
	Naive Mode = iota

	// Realistic draws every field from a distribution matching its meaning.
	Realistic
)

func (m Mode) String() string {
	switch m {
	case Naive:
		return "naive"
	case Realistic:
		return "realistic"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Bound is an inclusive value range.
type Bound struct {
	Min, Max float64
}

// Contains reports whether v lies within the bound.
func (b Bound) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Bounds lists the documented range of each field for a mode.
func Bounds(mode Mode) (o [NumFeatures]Bound) {
	for i := range o {
		o[i] = Bound{0, 1}
	}
	if mode == Realistic {
		for _, i := range []int{TripCount, TripsPerMonth, AvgDuration, AvgDistance, DaysSinceLastTrip} {
			o[i] = Bound{0, math.Inf(1)}
		}
	}
	return
}

// Generate produces n feature vectors using the given mode. The same seed
// yields the same vectors.
func Generate(n int, mode Mode, seed int64) []Features {
	if n <= 0 {
		return nil
	}
	src := rand.NewSource(uint64(seed))
	if mode == Realistic {
		return realistic(n, src)
	}
	rnd := rand.New(src)
	out := make([]Features, n)
	for i := range out {
		for j := range out[i] {
			out[i][j] = rnd.Float64()
		}
	}
	return out
}

func realistic(n int, src rand.Source) []Features {
	rnd := rand.New(src)
	var (
		trips    = distuv.Poisson{Lambda: 8, Src: src}
		perMonth = distuv.Gamma{Alpha: 2, Beta: 0.5, Src: src}
		duration = distuv.Gamma{Alpha: 3, Beta: 0.5, Src: src}
		distance = distuv.LogNormal{Mu: 4, Sigma: 1, Src: src}
		variety  = distuv.Beta{Alpha: 2, Beta: 5, Src: src}
		trend    = distuv.Beta{Alpha: 3, Beta: 3, Src: src}
		recency  = distuv.Exponential{Rate: 1.0 / 30, Src: src}
	)
	out := make([]Features, n)
	for i := range out {
		f := &out[i]
		f[TripCount] = trips.Rand() / 50
		f[TripsPerMonth] = perMonth.Rand() / 10
		f[AvgDuration] = duration.Rand() / 30
		f[AvgDistance] = distance.Rand() / 1000
		f[CurrentMonth] = float64(rnd.Intn(12)) / 11
		f[Season] = float64(rnd.Intn(4)) / 3
		f[TripType] = TripTypes[rnd.Intn(len(TripTypes))]
		f[DestinationVariability] = variety.Rand()
		f[RecentTrend] = trend.Rand()
		f[DaysSinceLastTrip] = recency.Rand() / DaysScale
	}
	return out
}
