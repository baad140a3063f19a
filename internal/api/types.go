package api

// IDResponse is returned by upload and merge.
type IDResponse struct {
	ID string `json:"id"`
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// HealthResponse is returned by /healthz.
type HealthResponse struct {
	Status string `json:"status"`
}
