package iris

import (
	"encoding/xml"
	"math"
	"strconv"
	"strings"

	"github.com/angeloszaimis/iris-server/internal/dataset"
)

// Measure is a length in centimetres.
type Measure float64

// String formats m the way a JavaScript number prints: plain decimals from
// 1e-6 up to 1e21, exponent notation outside that range, and a single 0 for
// both zeros.
func (m Measure) String() string {
	v := float64(m)
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}

	if abs := math.Abs(v); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}

	mantissa, exp, _ := strings.Cut(strconv.FormatFloat(v, 'e', -1, 64), "e")
	return mantissa + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0")
}

// MarshalXML writes m as character data. A NaN measure has no value and its
// element is left out.
func (m Measure) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if math.IsNaN(float64(m)) {
		return nil
	}
	return e.EncodeElement(m.String(), start)
}

// Flower is the projection of a record written to the response. The only
// implementations are FlowerBase and FlowerWithVariety.
type Flower interface {
	Base() FlowerBase
	isFlower()
}

type FlowerBase struct {
	PetalLength Measure `xml:"petal_length"`
	PetalWidth  Measure `xml:"petal_width"`
}

func (f FlowerBase) Base() FlowerBase { return f }
func (FlowerBase) isFlower() {}

type FlowerWithVariety struct {
	FlowerBase
	Variety string `xml:"variety"`
}

func (FlowerWithVariety) isFlower() {}

// NewFlower projects rec, carrying the variety only when withVariety is set.
func NewFlower(rec dataset.Record, withVariety bool) Flower {
	base := FlowerBase{
		PetalLength: Measure(rec.PetalLength),
		PetalWidth:  Measure(rec.PetalWidth),
	}
	if withVariety {
		return FlowerWithVariety{FlowerBase: base, Variety: rec.Variety}
	}
	return base
}
