package services

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func mapPgErrorToServiceError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return newServiceError(http.StatusNotFound, "AREA_NOT_FOUND", "not found", err)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return newServiceError(http.StatusInternalServerError, "AREA_INTERNAL", "internal error", err)
	}

	switch pgErr.Code {
	case "23505": // unique_violation
		recordWriteConflict("unique")
		return newServiceError(http.StatusConflict, "AREA_DUPLICATE_ID", "area id already exists", err)
	case "23503": // foreign_key_violation
		recordWriteConflict("foreign_key")
		if strings.HasPrefix(pgErr.Message, "update or delete") {
			return newServiceError(http.StatusConflict, "AREA_NON_EMPTY_SUBTREE", "area has children", err)
		}
		return newServiceError(http.StatusUnprocessableEntity, "AREA_PARENT_NOT_FOUND", "parent area not found", err)
	case "23000": // integrity_constraint_violation raised by areas_prevent_cycle
		recordWriteConflict("cycle")
		return newServiceError(http.StatusUnprocessableEntity, "AREA_CYCLE_REJECTED", "area cannot become its own ancestor", err)
	case "40001", "40P01": // serialization_failure, deadlock_detected
		recordWriteConflict("serialization")
		return newServiceError(http.StatusConflict, "AREA_CONCURRENT_UPDATE", "concurrent update, retry", err)
	default:
		return newServiceError(http.StatusInternalServerError, "AREA_INTERNAL", fmt.Sprintf("database error (%s)", pgErr.Code), err)
	}
}
