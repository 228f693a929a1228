package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// Response is the standard API envelope
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SuccessResponse writes a 200 response with the given payload
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

// CreatedResponse writes a 201 response with the given payload
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

// ErrorResponse writes an error response with the given status code
func ErrorResponse(c *gin.Context, status int, message string) {
	c.JSON(status, Response{Success: false, Error: message})
}

// BindErrorResponse writes a 400 response for a request-binding failure,
// expanding validator field errors into a readable message
func BindErrorResponse(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		msg := ""
		for i, fe := range verrs {
			if i > 0 {
				msg += "; "
			}
			msg += fieldErrorMessage(fe)
		}
		ErrorResponse(c, http.StatusBadRequest, msg)
		return
	}
	ErrorResponse(c, http.StatusBadRequest, err.Error())
}

func fieldErrorMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	case "gte":
		return fe.Field() + " must be greater than or equal to " + fe.Param()
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "latitude":
		return fe.Field() + " must be a valid latitude (-90 to 90)"
	case "longitude":
		return fe.Field() + " must be a valid longitude (-180 to 180)"
	default:
		return fe.Field() + " is invalid"
	}
}
