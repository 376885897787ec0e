package services

// ServiceError carries an HTTP-mappable error from the service layer to the
// controllers.
type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}
