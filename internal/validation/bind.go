package validation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

// RequestError is a client error carrying the message returned in the
// "error" field of the response.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string { return e.Message }

func badRequest(msg string) *RequestError {
	return &RequestError{Status: http.StatusBadRequest, Message: msg}
}

// DecodeJSON binds the JSON body into out.
func DecodeJSON(c *gin.Context, out interface{}) error {
	if err := c.ShouldBindJSON(out); err != nil {
		return badRequest("Invalid JSON body")
	}
	return nil
}

// Check runs struct validation and converts the first failure into a
// RequestError using the field's msg tag.
func Check(v *validatorv10.Validate, in interface{}) error {
	if err := v.Struct(in); err != nil {
		return badRequest(message(err, in))
	}
	return nil
}

// CheckFields is Check restricted to the named top-level fields, for
// requests whose rules must be applied in a fixed order.
func CheckFields(v *validatorv10.Validate, in interface{}, fields ...string) error {
	if err := v.StructPartial(in, fields...); err != nil {
		return badRequest(message(err, in))
	}
	return nil
}

// BindAndValidate binds the JSON body into out and validates it.
func BindAndValidate(c *gin.Context, out interface{}, v *validatorv10.Validate) error {
	if err := DecodeJSON(c, out); err != nil {
		return err
	}
	return Check(v, out)
}
