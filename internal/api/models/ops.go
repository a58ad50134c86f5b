package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Graph      GraphStatus       `json:"graph"`
	Subsystems []SubsystemStatus `json:"subsystems"`
	Providers  []ProviderStatus  `json:"providers"`
}

// GraphStatus describes the published routing graph.
type GraphStatus struct {
	Available bool       `json:"available"`
	BuiltAt   *Timestamp `json:"builtAt,omitempty"`
	AgeSecs   float64    `json:"ageSecs"`
	Stale     bool       `json:"stale"`
	Nodes     int        `json:"nodes"`
	Edges     int        `json:"edges"`
	LastError string     `json:"lastError,omitempty"`
}

// SubsystemStatus represents the status of a subsystem.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider     string       `json:"provider"`
	Status       HealthStatus `json:"status"`
	CircuitState string       `json:"circuitState"`
	Message      *string      `json:"message,omitempty"`
}

// RebuildResponse is the response of POST /v1/admin/graph:rebuild.
type RebuildResponse struct {
	Status  HealthStatus `json:"status"`
	Graph   GraphStatus  `json:"graph"`
	Message string       `json:"message,omitempty"`
}
