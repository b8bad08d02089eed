package dto

import (
	"rivermonitor/internal/model"
)

// ObservationResponse is one record as returned by /retrieve and the live feed.
type ObservationResponse struct {
	Timestamp   int64         `json:"timestamp"`
	RiverName   string        `json:"river_name"`
	EstLevel    float64       `json:"est_level"`
	Points      []model.Point `json:"points"`
	CountryName string        `json:"country_name"`
	BasinName   string        `json:"basin_name"`
}

// NewObservationResponse converts a stored observation. Points is never nil.
func NewObservationResponse(obs *model.Observation) ObservationResponse {
	points := obs.Points
	if points == nil {
		points = []model.Point{}
	}
	return ObservationResponse{
		Timestamp:   obs.Unix(),
		RiverName:   obs.RiverName,
		EstLevel:    obs.EstLevel,
		Points:      points,
		CountryName: obs.CountryName,
		BasinName:   obs.BasinName,
	}
}

// NewObservationResponses converts a result list, keeping its order.
func NewObservationResponses(observations []model.Observation) []ObservationResponse {
	out := make([]ObservationResponse, len(observations))
	for i := range observations {
		out[i] = NewObservationResponse(&observations[i])
	}
	return out
}

// StatusResponse acknowledges a successful upload.
type StatusResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the body of a 5xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// EventObservationCreated is pushed to live feed clients after each upload.
const EventObservationCreated = "observation.created"

// Event is a live feed message.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}
