package handlers

import "github.com/labstack/echo/v4"

// ErrorResponse is the standard API error body (message only).
type ErrorResponse struct {
	Message string `json:"message"`
}

// apiError writes an ErrorResponse with the given status.
func apiError(c echo.Context, status int, msg string) error {
	return c.JSON(status, ErrorResponse{Message: msg})
}
