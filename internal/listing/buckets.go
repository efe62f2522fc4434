package listing

// AllNeighborhoods is the neighborhood value that disables neighborhood filtering.
const AllNeighborhoods = "All SF"

// PriceBucket is an inclusive monthly rent range.
type PriceBucket struct {
	Label string
	Min   int
	Max   int
}

// Contains reports whether price falls inside the bucket, both ends inclusive.
func (b PriceBucket) Contains(price int) bool {
	return price >= b.Min && price <= b.Max
}

// Price bucket labels.
const (
	PriceAny     = "Any price"
	PriceUnder3k = "Under $3k"
	Price3kTo4k  = "$3k - $4k"
	Price4kPlus  = "$4k+"
)

// PriceBuckets lists the selectable price ranges in display order.
// Adjacent buckets share their boundary value.
var PriceBuckets = []PriceBucket{
	{Label: PriceAny, Min: 0, Max: 10000},
	{Label: PriceUnder3k, Min: 0, Max: 3000},
	{Label: Price3kTo4k, Min: 3000, Max: 4000},
	{Label: Price4kPlus, Min: 4000, Max: 10000},
}

// LookupPriceBucket returns the bucket with the given label, or the
// "Any price" bucket when the label is unknown.
func LookupPriceBucket(label string) PriceBucket {
	for _, b := range PriceBuckets {
		if b.Label == label {
			return b
		}
	}
	return PriceBuckets[0]
}

// BedBucket selects listings by bedroom count.
type BedBucket struct {
	Label string
	Value string
}

// Bed bucket values.
const (
	BedsAny       = "any"
	BedsStudio    = "0"
	BedsOne       = "1"
	BedsTwoOrMore = "2+"
)

// BedBuckets lists the selectable bedroom filters in display order.
var BedBuckets = []BedBucket{
	{Label: "Any beds", Value: BedsAny},
	{Label: "Studio", Value: BedsStudio},
	{Label: "1 bed", Value: BedsOne},
	{Label: "2+ beds", Value: BedsTwoOrMore},
}

// LookupBedBucket resolves a bucket by value or display label. The bare
// value "2" is accepted for "2+". Unknown input selects "any".
func LookupBedBucket(s string) BedBucket {
	if s == "2" {
		s = BedsTwoOrMore
	}
	for _, b := range BedBuckets {
		if b.Value == s || b.Label == s {
			return b
		}
	}
	return BedBuckets[0]
}

// Matches reports whether a listing with the given bedroom count passes.
func (b BedBucket) Matches(beds int) bool {
	switch b.Value {
	case BedsStudio:
		return beds == 0
	case BedsOne:
		return beds == 1
	case BedsTwoOrMore:
		return beds >= 2
	default:
		return true
	}
}
