package utils

import (
	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	validate.RegisterValidation("coordinates", validateCoordinates)
	validate.RegisterValidation("user_role", validateUserRole)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

func validateCoordinates(fl validator.FieldLevel) bool {
	coords, ok := fl.Field().Interface().([]float64)
	if !ok || len(coords) != 2 {
		return false
	}

	lng, lat := coords[0], coords[1]
	return IsValidCoordinates(lat, lng)
}

func validateUserRole(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case RoleClient, RoleFundi, RoleOperator:
		return true
	}
	return false
}

// ValidationDetails flattens validator errors into a field->message map for
// the API error envelope.
func ValidationDetails(err error) map[string]string {
	details := make(map[string]string)

	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range verrs {
			details[fe.Field()] = "failed on '" + fe.Tag() + "' validation"
		}
	}

	return details
}
