package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/Ivanjochie0/luxuryproducts-cart/pkg/errors"
)

// StatusError is a non-2xx answer from a downstream service. It unwraps to
// the AppError the cart answers its own client with, so errors.Is against
// the pkg/errors sentinels and apperrors.HTTPStatus both work on it.
type StatusError struct {
	Service string
	Status  int
	Code    string
	Message string

	mapped *apperrors.AppError
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s answered %d %s: %s", e.Service, e.Status, e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.mapped
}

// ParseResponseError consumes and closes the body of a non-2xx response. A
// body in the {"error":{"code","message"}} envelope supplies the code and
// message; anything else is kept as the message under the status text.
func ParseResponseError(resp *http.Response, service string) error {
	defer func() { _ = resp.Body.Close() }()

	e := &StatusError{Service: service, Status: resp.StatusCode, Code: http.StatusText(resp.StatusCode)}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		e.Message = "unreadable body: " + err.Error()
	} else {
		var envelope struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &envelope) == nil && envelope.Error != nil {
			e.Code, e.Message = envelope.Error.Code, envelope.Error.Message
		} else {
			e.Message = string(raw)
		}
	}
	e.mapped = e.appError()
	return e
}

func (e *StatusError) appError() *apperrors.AppError {
	message := e.Service + ": " + e.Message
	switch {
	case e.Status == http.StatusNotFound:
		return apperrors.New(apperrors.ErrNotFound, "NOT_FOUND", message, nil)
	case e.Status == http.StatusBadRequest:
		return apperrors.InvalidInput(message)
	case e.Status == http.StatusConflict:
		return apperrors.Conflict(e.Code, message)
	case e.Status == http.StatusGone, e.Status == http.StatusUnprocessableEntity:
		return apperrors.Unprocessable(e.Code, message)
	case e.Status >= http.StatusInternalServerError:
		// The downstream's own wording stays out of the cart's response.
		return apperrors.ServiceUnavailable(e.Service+" is unavailable", nil)
	}
	appErr := apperrors.New(apperrors.ErrInternal, e.Code, message, nil)
	appErr.Status = e.Status
	return appErr
}
