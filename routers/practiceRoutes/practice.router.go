package practiceRoutes

import (
	practiceController "qbank/controllers/practice"
	"qbank/middleware"
	practiceValidator "qbank/validators/practice"

	"github.com/gofiber/fiber/v2"
)

func SetupPracticeRoutes(app *fiber.App, ctl *practiceController.Controller) {
	practiceGroup := app.Group("/practice")

	// Bank discovery
	practiceGroup.Get("/tiku-list", middleware.JWTMiddleware, ctl.TikuList)
	practiceGroup.Get("/file-options", middleware.JWTMiddleware, ctl.FileOptions)
	practiceGroup.Get("/questions/:id", middleware.JWTMiddleware, ctl.QuestionDetail)

	// Session lifecycle
	practiceGroup.Post("/start", practiceValidator.StartPractice(), middleware.JWTMiddleware, ctl.StartPractice)
	practiceGroup.Get("/question", middleware.JWTMiddleware, ctl.NextQuestion)
	practiceGroup.Post("/submit", practiceValidator.SubmitAnswer(), middleware.JWTMiddleware, ctl.SubmitAnswer)
	practiceGroup.Post("/jump", practiceValidator.JumpTo(), middleware.JWTMiddleware, ctl.JumpTo)
	practiceGroup.Get("/statuses", middleware.JWTMiddleware, ctl.Statuses)
	practiceGroup.Get("/history/:index", middleware.JWTMiddleware, ctl.HistoryAt)
	practiceGroup.Post("/complete", middleware.JWTMiddleware, ctl.CompleteSession)
	practiceGroup.Post("/abandon", middleware.JWTMiddleware, ctl.AbandonSession)
}
