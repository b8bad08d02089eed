package model

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Point is one vertex of the outline drawn on the observation photo.
type Point struct {
	X float32
	Y float32
}

// MarshalJSON renders the point as a two-element array.
func (p Point) MarshalJSON() ([]byte, error) {
	if !p.Finite() {
		return nil, fmt.Errorf("point (%v, %v) is not finite", p.X, p.Y)
	}
	b := make([]byte, 0, 32)
	b = append(b, '[')
	b = strconv.AppendFloat(b, float64(p.X), 'g', -1, 32)
	b = append(b, ',')
	b = strconv.AppendFloat(b, float64(p.Y), 'g', -1, 32)
	b = append(b, ']')
	return b, nil
}

// UnmarshalJSON reads a two-element array of numbers.
func (p *Point) UnmarshalJSON(data []byte) error {
	var pair []*float32
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 || pair[0] == nil || pair[1] == nil {
		return errors.New("point must be an [x, y] pair of numbers")
	}
	p.X, p.Y = *pair[0], *pair[1]
	return nil
}

// Finite reports whether both coordinates are finite.
func (p Point) Finite() bool {
	x, y := float64(p.X), float64(p.Y)
	return !math.IsNaN(x) && !math.IsInf(x, 0) && !math.IsNaN(y) && !math.IsInf(y, 0)
}

// Observation is one uploaded water-level reading.
type Observation struct {
	ID          int64
	Timestamp   time.Time
	RiverName   string
	CountryName string
	BasinName   string
	EstLevel    float64
	Points      []Point
}

// Unix returns the observation's external key.
func (o *Observation) Unix() int64 {
	return o.Timestamp.Unix()
}
