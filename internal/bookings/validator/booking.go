package validator

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"travelbook/pkg/logger"
	"travelbook/pkg/model"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type BookingValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewBookingValidator(log *logger.Logger) *BookingValidator {
	v := validator.New()

	if err := v.RegisterValidation("booking_id", validateBookingID); err != nil {
		log.Fatal("Failed to register 'booking_id' validator",
			"error", err,
		)
	}

	return &BookingValidator{
		validate: v,
		logger:   log,
	}
}

// validateBookingID accepts both id shapes the stores hand out: Mongo
// ObjectID hex and UUID.
func validateBookingID(fl validator.FieldLevel) bool {
	id := fl.Field().String()
	if primitive.IsValidObjectID(id) {
		return true
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func (v *BookingValidator) ValidateBookingID(id string) error {
	return v.field("booking_id", id, "required,booking_id")
}

func (v *BookingValidator) ValidatePaymentIntentID(id string) error {
	return v.field("payment_intent_id", id, "required,startswith=pi_,max=255")
}

func (v *BookingValidator) ValidateStatus(status string) error {
	return v.field("status", status, "omitempty,oneof=draft in_progress confirmed cancelled")
}

func (v *BookingValidator) ValidateStep(step int) error {
	return v.field("step", step, fmt.Sprintf("min=0,max=%d", model.StepCount-1))
}

// DecodeStepData accepts a JSON object or null. A missing or null payload
// yields a nil slot.
func (v *BookingValidator) DecodeStepData(raw json.RawMessage) (model.StepData, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] != '{' {
		return nil, ValidationErrors{{Field: "data", Message: "data must be a JSON object or null"}}
	}

	var data model.StepData
	if err := json.Unmarshal(trimmed, &data); err != nil {
		return nil, ValidationErrors{{Field: "data", Message: "data is not valid JSON"}}
	}
	return data, nil
}

func (v *BookingValidator) field(name string, value any, tag string) error {
	if err := v.validate.Var(value, tag); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(name, validationErrs)
		}
		return err
	}
	return nil
}

func (v *BookingValidator) translateValidationErrors(name string, errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", name)
		case "min":
			message = fmt.Sprintf("%s must be at least %s", name, err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", name, err.Param())
		case "booking_id":
			message = fmt.Sprintf("%s must be a valid booking ID", name)
		case "startswith":
			message = fmt.Sprintf("%s must start with %s", name, err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", name, err.Param())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   name,
			Message: message,
		})
	}

	return validationErrors
}
