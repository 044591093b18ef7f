package validation

import (
	"github.com/go-playground/validator/v10"

	"car-advisor/pkg/models"
)

var (
	platforms = map[string]bool{models.SourceSauto: true, models.SourceBazos: true, models.SourceTipCars: true}
	fuels     = map[string]bool{"benzin": true, "nafta": true, "hybridni": true, "elektro": true, "lpg": true, "cng": true}
	gearboxes = map[string]bool{"manualni": true, "automaticka": true}
)

// New returns a validator with the request validators registered
func New() *validator.Validate {
	v := validator.New()
	RegisterRequestValidators(v)
	return v
}

// RegisterRequestValidators registers the custom tags used on request models.
// Values are matched exactly; requests are normalized to lower case before validation.
func RegisterRequestValidators(v *validator.Validate) {
	v.RegisterValidation("platform", oneOf(platforms))
	v.RegisterValidation("fuel", oneOf(fuels))
	v.RegisterValidation("gearbox", oneOf(gearboxes))
}

func oneOf(set map[string]bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return set[fl.Field().String()]
	}
}
