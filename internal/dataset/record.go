package dataset

// Keys read from every input object. Lookup is exact, so "PETAL.LENGTH" is
// not the same key as "petal.length".
const (
	KeyPetalLength = "petal.length"
	KeyPetalWidth  = "petal.width"
	KeyVariety     = "variety"
)

// Record is one entry of the input file. Other keys are ignored.
//
// Numeric values follow loose number coercion: JSON numbers are used as is,
// numeric strings such as "4.7" are converted, booleans become 1 or 0 and
// null becomes 0. A missing key or a value that is not a number (an object,
// "abc") is NaN, which never passes a petal length filter and is left out of
// the rendered flower.
type Record struct {
	PetalLength float64 `json:"petal.length"`
	PetalWidth  float64 `json:"petal.width"`
	Variety     string  `json:"variety"`
}
