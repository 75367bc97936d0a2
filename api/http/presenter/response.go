package presenter

import "github.com/gofiber/fiber/v2"

// SuccessResponse wraps every successful payload.
type SuccessResponse struct {
	Success bool `json:"success" example:"true"`
	Data    any  `json:"data"`
}

// ErrorResponse wraps every failure.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message"`
}

func JSON(c *fiber.Ctx, status int, data any) error {
	return c.Status(status).JSON(SuccessResponse{Success: true, Data: data})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{Success: false, Message: message})
}
