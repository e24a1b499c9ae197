package practiceValidator

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"qbank/middleware"
	"qbank/models"
)

var knownTypes = map[string]bool{
	models.TypeSingleChoice:   true,
	models.TypeMultipleChoice: true,
	models.TypeJudgment:       true,
	models.TypeOther:          true,
}

// StartPractice validates a session start request
func StartPractice() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			TikuID        uint     `json:"tikuId"`
			SelectedTypes []string `json:"selectedTypes"`
			Shuffle       *bool    `json:"shuffle"`
			ForceRestart  bool     `json:"forceRestart"`
		})
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if reqData.TikuID == 0 {
			errors["tikuId"] = "Question bank id is required!"
		}

		// null means every type; an explicit list must only name known types
		for _, t := range reqData.SelectedTypes {
			if !knownTypes[t] {
				errors["selectedTypes"] = "Unknown question type: " + t
				break
			}
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedStartPractice", reqData)
		return c.Next()
	}
}

// SubmitAnswer validates an answer submission
func SubmitAnswer() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Answer string `json:"answer"`
			Peeked bool   `json:"peeked"`
		})
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		// a peeked submission carries no answer of its own
		if !reqData.Peeked && strings.TrimSpace(reqData.Answer) == "" {
			errors["answer"] = "Answer is required!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedSubmitAnswer", reqData)
		return c.Next()
	}
}

// JumpTo validates a cursor move request
func JumpTo() fiber.Handler {
	return func(c *fiber.Ctx) error {
		reqData := new(struct {
			Index *int `json:"index"`
		})
		if err := c.BodyParser(reqData); err != nil {
			return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request body!", nil)
		}

		errors := make(map[string]string)

		if reqData.Index == nil {
			errors["index"] = "Target index is required!"
		} else if *reqData.Index < 0 {
			errors["index"] = "Target index must not be negative!"
		}

		if len(errors) > 0 {
			return middleware.ValidationErrorResponse(c, errors)
		}

		c.Locals("validatedJumpTo", reqData)
		return c.Next()
	}
}
