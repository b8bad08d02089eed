// Package validation checks an inbound observation submission before any
// side effect happens.
package validation

import (
	"errors"
	"fmt"
	"image"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"rivermonitor/internal/apperror"
	"rivermonitor/internal/imaging"
	"rivermonitor/internal/model"
)

// Form field and file names accepted by the upload endpoint.
const (
	FieldRiverName   = "river_name"
	FieldCountryName = "country_name"
	FieldBasinName   = "basin_name"
	FieldPoints      = "points"
	FieldDepth       = "depth"
	FileImage        = "image"
)

var requiredFields = []string{FieldRiverName, FieldPoints, FieldDepth}

// Submission is the raw upload as collected by the HTTP layer.
type Submission struct {
	Fields map[string]string
	Files  map[string]io.Reader
}

// Accepted is a submission that passed every check. Timestamp and storage
// are assigned later.
type Accepted struct {
	RiverName   string
	CountryName string
	BasinName   string
	EstLevel    float64
	Points      []model.Point
	Image       image.Image
	Format      string
}

// Observation returns the metadata part of a as an unsaved observation.
func (a *Accepted) Observation() *model.Observation {
	return &model.Observation{
		RiverName:   a.RiverName,
		CountryName: a.CountryName,
		BasinName:   a.BasinName,
		EstLevel:    a.EstLevel,
		Points:      a.Points,
	}
}

// Validate runs the checks in order and stops at the first failure. The
// returned error is always an *apperror.Error with a validation kind.
func Validate(sub Submission) (*Accepted, error) {
	const op = "validation.Validate"

	for _, name := range requiredFields {
		if _, ok := sub.Fields[name]; !ok {
			return nil, apperror.New(apperror.KindMissingField, op, fmt.Errorf("missing field %q", name))
		}
	}
	riverName := strings.TrimSpace(sub.Fields[FieldRiverName])
	if riverName == "" {
		return nil, apperror.New(apperror.KindMissingField, op, fmt.Errorf("empty field %q", FieldRiverName))
	}

	stream, ok := sub.Files[FileImage]
	if !ok || stream == nil {
		return nil, apperror.New(apperror.KindMissingFile, op, fmt.Errorf("missing file %q", FileImage))
	}

	points, err := ParsePoints(sub.Fields[FieldPoints])
	if err != nil {
		return nil, apperror.New(apperror.KindInvalidPoints, op, err)
	}

	depth, err := ParseDepth(sub.Fields[FieldDepth])
	if err != nil {
		return nil, apperror.New(apperror.KindInvalidDepth, op, err)
	}

	img, format, err := imaging.Decode(stream)
	if err != nil {
		return nil, apperror.New(apperror.KindInvalidImage, op, err)
	}

	return &Accepted{
		RiverName:   riverName,
		CountryName: sub.Fields[FieldCountryName],
		BasinName:   sub.Fields[FieldBasinName],
		EstLevel:    depth,
		Points:      points,
		Image:       img,
		Format:      format,
	}, nil
}

// ParsePoints decodes a JSON array of [x, y] pairs. Every coordinate must fit
// a finite float32; null is not a number.
func ParsePoints(raw string) ([]model.Point, error) {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "[") {
		return nil, errors.New("points must be a JSON array")
	}

	var pairs [][]*float64
	if err := json.Unmarshal([]byte(trimmed), &pairs); err != nil {
		return nil, fmt.Errorf("invalid points JSON: %w", err)
	}

	points := make([]model.Point, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, fmt.Errorf("point %d has %d coordinates, expected 2", i, len(pair))
		}
		x, err := coordinate(pair[0])
		if err != nil {
			return nil, fmt.Errorf("point %d x: %w", i, err)
		}
		y, err := coordinate(pair[1])
		if err != nil {
			return nil, fmt.Errorf("point %d y: %w", i, err)
		}
		points[i] = model.Point{X: x, Y: y}
	}
	return points, nil
}

// ParseDepth parses the depth estimate. Surrounding whitespace is ignored.
func ParseDepth(raw string) (float64, error) {
	depth, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid depth %q: %w", raw, err)
	}
	if math.IsNaN(depth) || math.IsInf(depth, 0) {
		return 0, fmt.Errorf("depth %q is not finite", raw)
	}
	return depth, nil
}

func coordinate(v *float64) (float32, error) {
	if v == nil {
		return 0, errors.New("coordinate is null")
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) || math.Abs(*v) > math.MaxFloat32 {
		return 0, fmt.Errorf("%v does not fit a float32", *v)
	}
	return float32(*v), nil
}
