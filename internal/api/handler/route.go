// Package handler provides HTTP handlers for the trafigo API.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/trafigo/trafigo/internal/api/models"
	"github.com/trafigo/trafigo/internal/api/response"
	"github.com/trafigo/trafigo/internal/fusion"
	"github.com/trafigo/trafigo/internal/geocode"
	"github.com/trafigo/trafigo/internal/planner"
	"github.com/trafigo/trafigo/pkg/polyline"
)

// RouteHandler handles route planning requests.
type RouteHandler struct {
	planner  *planner.Service
	geocoder geocode.Geocoder
}

// NewRouteHandler creates a new RouteHandler. The geocoder may be nil;
// free-text endpoints are then rejected.
func NewRouteHandler(plannerService *planner.Service, geocoder geocode.Geocoder) *RouteHandler {
	return &RouteHandler{
		planner:  plannerService,
		geocoder: geocoder,
	}
}

// PlanRoute handles POST /v1/routes:plan.
func (h *RouteHandler) PlanRoute(w http.ResponseWriter, r *http.Request) {
	var req models.PlanRouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	var fieldErrs []models.FieldError
	fieldErrs = append(fieldErrs, h.validateEndpoint("origin", req.Origin)...)
	fieldErrs = append(fieldErrs, h.validateEndpoint("destination", req.Destination)...)
	if len(fieldErrs) > 0 {
		response.BadRequest(w, r, "invalid route endpoints", fieldErrs)
		return
	}

	origin, err := h.resolveEndpoint(r, req.Origin)
	if err != nil {
		h.writeResolveError(w, r, "origin", req.Origin.Query, err)
		return
	}
	destination, err := h.resolveEndpoint(r, req.Destination)
	if err != nil {
		h.writeResolveError(w, r, "destination", req.Destination.Query, err)
		return
	}

	route, err := h.planner.Plan(r.Context(),
		planner.Coordinate{Lon: origin.Point.Lon, Lat: origin.Point.Lat},
		planner.Coordinate{Lon: destination.Point.Lon, Lat: destination.Point.Lat})
	if err != nil {
		switch {
		case errors.Is(err, planner.ErrNoRouteFound):
			response.NotFound(w, r, "no route between the requested endpoints")
		case errors.Is(err, fusion.ErrNoGraph):
			response.ServiceUnavailable(w, r, "routing graph not available, try again shortly")
		default:
			response.InternalError(w, r, "route planning failed")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, buildRouteResponse(origin, destination, route))
}

func (h *RouteHandler) validateEndpoint(field string, ep models.RouteEndpoint) []models.FieldError {
	if ep.Point == nil && ep.Query == "" {
		return []models.FieldError{{
			Field:   field,
			Message: "either point or query must be set",
			Code:    "REQUIRED",
		}}
	}
	if ep.Point == nil && h.geocoder == nil {
		return []models.FieldError{{
			Field:   field,
			Message: "free-text endpoints are not supported",
			Code:    "UNSUPPORTED",
		}}
	}
	if ep.Point != nil {
		if ep.Point.Lat < -90 || ep.Point.Lat > 90 || ep.Point.Lon < -180 || ep.Point.Lon > 180 {
			return []models.FieldError{{
				Field:   field,
				Message: "coordinate out of range",
				Code:    "OUT_OF_RANGE",
			}}
		}
	}
	return nil
}

// resolveEndpoint turns a validated endpoint into a coordinate, going
// through the geocoder for free-text queries.
func (h *RouteHandler) resolveEndpoint(r *http.Request, ep models.RouteEndpoint) (models.ResolvedEndpoint, error) {
	if ep.Point != nil {
		return models.ResolvedEndpoint{Point: *ep.Point}, nil
	}

	loc, err := h.geocoder.Geocode(r.Context(), ep.Query)
	if err != nil {
		return models.ResolvedEndpoint{}, err
	}

	return models.ResolvedEndpoint{
		Point:       models.Point{Lat: loc.Lat, Lon: loc.Lon},
		DisplayName: loc.DisplayName,
	}, nil
}

func (h *RouteHandler) writeResolveError(w http.ResponseWriter, r *http.Request, field, query string, err error) {
	if errors.Is(err, geocode.ErrNotFound) {
		response.BadRequest(w, r, "could not resolve endpoint", []models.FieldError{{
			Field:   field,
			Message: "no place found for: " + query,
			Code:    "GEOCODE_NOT_FOUND",
		}})
		return
	}
	response.ServiceUnavailable(w, r, "geocoding unavailable, try again shortly")
}

func buildRouteResponse(origin, destination models.ResolvedEndpoint, route *planner.Route) models.PlanRouteResponse {
	coords := make([]polyline.Coordinate, 0, len(route.Waypoints))
	waypoints := make([]models.RouteWaypoint, 0, len(route.Waypoints))
	for _, wp := range route.Waypoints {
		coords = append(coords, polyline.Coordinate{Lat: wp.Lat, Lon: wp.Lon})
		waypoints = append(waypoints, models.RouteWaypoint{
			Lat:        wp.Lat,
			Lon:        wp.Lon,
			Congestion: int(wp.Congestion),
		})
	}

	return models.PlanRouteResponse{
		Origin:         origin,
		Destination:    destination,
		Polyline:       polyline.Encode(coords),
		Waypoints:      waypoints,
		TravelTime:     route.TravelTime,
		DistanceMeters: route.DistanceMeters,
		GraphBuiltAt:   models.Timestamp(route.GraphBuiltAt),
	}
}
