package gametools

// APIError is any failure talking to the GameTools API: transport errors and
// 5xx after retry exhaustion, 4xx rejections, unparseable bodies, and local
// validation (oversized batches, unresolvable players).
type APIError struct {
	// Status is the HTTP status code when the server rejected the call,
	// zero for transport-level and local failures.
	Status  int
	Message string
}

func (e *APIError) Error() string { return e.Message }
