package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
	"github.com/pocotu/oficri-areas/pkg/serrors"
)

type ServiceError struct {
	Status  int
	Code    string
	Message string
	Cause   error
}

func (e *ServiceError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ServiceError) Unwrap() error { return e.Cause }

func newServiceError(status int, code, message string, cause error) *ServiceError {
	return &ServiceError{Status: status, Code: code, Message: message, Cause: cause}
}

func invalidBody(message string) *ServiceError {
	return newServiceError(http.StatusBadRequest, "AREA_INVALID_BODY", message, nil)
}

var domainStatus = []struct {
	err    *serrors.BaseError
	status int
}{
	{area.ErrNotFound, http.StatusNotFound},
	{area.ErrCycleRejected, http.StatusUnprocessableEntity},
	{area.ErrInvalidPosition, http.StatusBadRequest},
	{area.ErrNonEmptySubtree, http.StatusConflict},
	{area.ErrDuplicateID, http.StatusConflict},
	{area.ErrInvalidID, http.StatusBadRequest},
}

// mapDomainError turns engine failures into ServiceErrors and falls back to the
// Postgres mapping for everything else.
func mapDomainError(err error) error {
	if err == nil {
		return nil
	}
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return err
	}
	for _, m := range domainStatus {
		if errors.Is(err, m.err) {
			return newServiceError(m.status, m.err.Code, m.err.Message, err)
		}
	}
	return mapPgErrorToServiceError(err)
}

func errorCode(err error) string {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return "AREA_INTERNAL"
}
