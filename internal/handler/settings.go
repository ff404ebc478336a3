package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/pixelpress/api/internal/model"
	"github.com/pixelpress/api/internal/settings"
	"github.com/pixelpress/api/pkg/response"
)

type SettingsHandler struct {
	store     *settings.Store
	validator *validator.Validate
}

func NewSettingsHandler(store *settings.Store, v *validator.Validate) *SettingsHandler {
	return &SettingsHandler{
		store:     store,
		validator: v,
	}
}

// Get handles GET /api/settings
// @Summary      Current compression settings
// @Tags         Settings
// @Produce      json
// @Success      200 {object} model.Settings
// @Router       /api/settings [get]
func (h *SettingsHandler) Get(c *fiber.Ctx) error {
	return response.OK(c, h.store.Current())
}

// Update handles PUT /api/settings
// @Summary      Update compression settings
// @Description  Partial update; omitted fields keep their current value. Changes apply to every job admitted from now on, including jobs already pending.
// @Tags         Settings
// @Accept       json
// @Produce      json
// @Param        request body model.UpdateSettingsRequest true "Settings update"
// @Success      200 {object} model.Settings
// @Failure      400 {object} response.ErrorResponse
// @Router       /api/settings [put]
func (h *SettingsHandler) Update(c *fiber.Ctx) error {
	var req model.UpdateSettingsRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	return response.OK(c, h.store.Update(&req))
}

// WebPreset handles POST /api/settings/preset/web
// @Summary      Apply the web-optimized preset
// @Description  Atomically sets quality 0.8, 1920x1080, webp
// @Tags         Settings
// @Produce      json
// @Success      200 {object} model.Settings
// @Router       /api/settings/preset/web [post]
func (h *SettingsHandler) WebPreset(c *fiber.Ctx) error {
	return response.OK(c, h.store.ApplyWebPreset())
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
