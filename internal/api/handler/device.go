package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/qoomy/notifier/internal/api/models"
	"github.com/qoomy/notifier/internal/api/response"
	"github.com/qoomy/notifier/internal/device"
)

// DeviceRegistrar stores push tokens. *device.Registry satisfies it.
type DeviceRegistrar interface {
	Register(ctx context.Context, userID, value string, platform device.Platform) (bool, error)
}

// DeviceHandler handles device registration.
type DeviceHandler struct {
	registry DeviceRegistrar
	logger   zerolog.Logger
}

// NewDeviceHandler creates a new DeviceHandler.
func NewDeviceHandler(registry DeviceRegistrar, logger zerolog.Logger) *DeviceHandler {
	return &DeviceHandler{registry: registry, logger: logger}
}

// RegisterDevice handles POST /v1/me/devices.
// Returns 201 for a new token and 200 when an existing one was refreshed.
func (h *DeviceHandler) RegisterDevice(w http.ResponseWriter, r *http.Request) {
	userID := GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	var input models.DeviceRegisterRequest
	if err := response.DecodeJSON(r, &input); err != nil {
		response.BadRequest(w, r, "invalid JSON body", nil)
		return
	}

	if fieldErrors := validateDevice(input); len(fieldErrors) > 0 {
		response.BadRequest(w, r, "invalid device registration", fieldErrors)
		return
	}

	platform := device.Platform(strings.ToLower(input.Platform))
	created, err := h.registry.Register(r.Context(), userID, input.Token, platform)
	if err != nil {
		switch {
		case errors.Is(err, device.ErrEmptyToken), errors.Is(err, device.ErrInvalidPlatform):
			response.BadRequest(w, r, err.Error(), nil)
		default:
			h.logger.Error().Err(err).Str("user_id", userID).Msg("failed to register device")
			response.InternalError(w, r, "failed to register device")
		}
		return
	}

	body := models.Device{
		Platform:   string(platform),
		TokenLast4: device.Token{Value: strings.TrimSpace(input.Token)}.Last4(),
		Created:    created,
	}
	if created {
		response.Created(w, r, "", body)
		return
	}
	response.JSON(w, r, http.StatusOK, body)
}

func validateDevice(input models.DeviceRegisterRequest) []models.FieldError {
	var errs []models.FieldError
	if strings.TrimSpace(input.Token) == "" {
		errs = append(errs, models.FieldError{Field: "token", Message: "is required", Code: models.FieldCodeRequired})
	}
	switch {
	case input.Platform == "":
		errs = append(errs, models.FieldError{Field: "platform", Message: "is required", Code: models.FieldCodeRequired})
	case !device.Platform(strings.ToLower(input.Platform)).Valid():
		errs = append(errs, models.FieldError{Field: "platform", Message: "must be ios or android", Code: models.FieldCodeInvalid})
	}
	return errs
}
