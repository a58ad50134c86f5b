package models

// RouteEndpoint is one end of a routing request. Either a coordinate
// or a free-text query must be set; the query goes through geocoding.
type RouteEndpoint struct {
	Point *Point `json:"point,omitempty"`
	Query string `json:"query,omitempty"`
}

// PlanRouteRequest is the body of POST /v1/routes:plan.
type PlanRouteRequest struct {
	Origin      RouteEndpoint `json:"origin" validate:"required"`
	Destination RouteEndpoint `json:"destination" validate:"required"`
}

// RouteWaypoint is one node of the planned route. Congestion is the
// level of the street arriving at the waypoint (0 for the origin).
type RouteWaypoint struct {
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	Congestion int     `json:"congestion"`
}

// ResolvedEndpoint echoes how a requested endpoint was interpreted.
type ResolvedEndpoint struct {
	Point       Point  `json:"point"`
	DisplayName string `json:"displayName,omitempty"`
}

// PlanRouteResponse is the response of POST /v1/routes:plan.
type PlanRouteResponse struct {
	// Origin and Destination are the resolved endpoints, after
	// geocoding and snapping.
	Origin      ResolvedEndpoint `json:"origin"`
	Destination ResolvedEndpoint `json:"destination"`

	// Polyline is the encoded route geometry.
	Polyline string `json:"polyline"`

	Waypoints []RouteWaypoint `json:"waypoints"`

	// TravelTime is the relative congestion-weighted cost of the route.
	TravelTime float64 `json:"travelTime"`

	DistanceMeters float64 `json:"distanceMeters"`

	// GraphBuiltAt is when the answering graph was built; clients can
	// judge how live the congestion weighting is.
	GraphBuiltAt Timestamp `json:"graphBuiltAt"`
}
