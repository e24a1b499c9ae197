package practiceController

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"qbank/cache"
	"qbank/middleware"
	"qbank/practice"
)

// Controller serves the drill endpoints. Both dependencies are injected so
// no handler reaches for package-level state.
type Controller struct {
	Cache   *cache.HybridCache
	Manager *practice.Manager
}

func New(hybrid *cache.HybridCache, manager *practice.Manager) *Controller {
	return &Controller{Cache: hybrid, Manager: manager}
}

// TikuList returns every bank with its subject exam times
func (ctl *Controller) TikuList(c *fiber.Ctx) error {
	data, err := ctl.Cache.GetTikuList(c.Context())
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Question banks are unavailable right now!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Question banks fetched!", data)
}

// FileOptions returns the per-subject view of active banks
func (ctl *Controller) FileOptions(c *fiber.Ctx) error {
	options, err := ctl.Cache.GetFileOptions(c.Context())
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Question banks are unavailable right now!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "File options fetched!", options)
}

// StartPractice begins a drill or resumes the caller's active one
func (ctl *Controller) StartPractice(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	reqData, ok := c.Locals("validatedStartPractice").(*struct {
		TikuID        uint     `json:"tikuId"`
		SelectedTypes []string `json:"selectedTypes"`
		Shuffle       *bool    `json:"shuffle"`
		ForceRestart  bool     `json:"forceRestart"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	shuffle := true
	if reqData.Shuffle != nil {
		shuffle = *reqData.Shuffle
	}

	res, err := ctl.Manager.Start(c.Context(), userId, reqData.TikuID, reqData.SelectedTypes, shuffle, reqData.ForceRestart)
	switch {
	case errors.Is(err, cache.ErrTikuNotFound):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Question bank not found!", nil)
	case errors.Is(err, cache.ErrTikuDisabled):
		return middleware.JsonResponse(c, fiber.StatusForbidden, false, "Question bank is disabled!", nil)
	case errors.Is(err, practice.ErrEmptyQuestionSet):
		return middleware.JsonResponse(c, fiber.StatusUnprocessableEntity, false, "No questions match the selected types!", nil)
	case err != nil:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to start practice!", nil)
	}

	message := "Practice started!"
	if res.Resumed {
		message = "Practice resumed!"
	}
	sess := res.Session
	return middleware.JsonResponse(c, fiber.StatusOK, true, message, fiber.Map{
		"sessionKey": sess.Key,
		"resumed":    res.Resumed,
		"progress":   progressOf(sess),
	})
}

// NextQuestion serves the question at the cursor without revealing its
// answer. Exhausting the last round completes the session.
func (ctl *Controller) NextQuestion(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	res, err := ctl.Manager.Next(c.Context(), userId)
	if errors.Is(err, practice.ErrNoActiveSession) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "No active practice session!", nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch question!", nil)
	}

	if res.Finished {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Practice completed!", fiber.Map{
			"finished": true,
			"progress": res.Progress,
		})
	}

	q := res.Question
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Question fetched!", fiber.Map{
		"finished": false,
		"newRound": res.NewRound,
		"progress": res.Progress,
		"question": fiber.Map{
			"id":               q.ID,
			"type":             q.Type,
			"question":         q.Question,
			"options":          q.OptionsMap(),
			"isMultipleChoice": q.IsMultipleChoice,
		},
	})
}

// SubmitAnswer grades a submission against the question at the cursor
func (ctl *Controller) SubmitAnswer(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	reqData, ok := c.Locals("validatedSubmitAnswer").(*struct {
		Answer string `json:"answer"`
		Peeked bool   `json:"peeked"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	res, err := ctl.Manager.Answer(c.Context(), userId, reqData.Answer, reqData.Peeked)
	switch {
	case errors.Is(err, practice.ErrNoActiveSession):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "No active practice session!", nil)
	case errors.Is(err, practice.ErrInvalidSessionState):
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "No question is awaiting an answer!", nil)
	case err != nil:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to grade answer!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Answer graded!", res)
}

// JumpTo moves the cursor within the current round
func (ctl *Controller) JumpTo(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	reqData, ok := c.Locals("validatedJumpTo").(*struct {
		Index *int `json:"index"`
	})
	if !ok {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid request data!", nil)
	}

	progress, err := ctl.Manager.Jump(userId, *reqData.Index)
	switch {
	case errors.Is(err, practice.ErrNoActiveSession):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "No active practice session!", nil)
	case errors.Is(err, practice.ErrIndexOutOfRange):
		return middleware.JsonResponse(c, fiber.StatusUnprocessableEntity, false, "Target index is outside the current round!", nil)
	case err != nil:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to jump!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Jumped!", fiber.Map{"progress": progress})
}

// Statuses returns the per-question statuses of the current round
func (ctl *Controller) Statuses(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	statuses, progress, err := ctl.Manager.Statuses(userId)
	if errors.Is(err, practice.ErrNoActiveSession) {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "No active practice session!", nil)
	}
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch statuses!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Statuses fetched!", fiber.Map{
		"statuses": statuses,
		"progress": progress,
	})
}

// HistoryAt returns the recorded answer at one working-set index
func (ctl *Controller) HistoryAt(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	index, err := c.ParamsInt("index")
	if err != nil || index < 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid history index!", nil)
	}

	rec, err := ctl.Manager.HistoryAt(userId, index)
	switch {
	case errors.Is(err, practice.ErrNoActiveSession):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "No active practice session!", nil)
	case errors.Is(err, practice.ErrIndexOutOfRange):
		return middleware.JsonResponse(c, fiber.StatusUnprocessableEntity, false, "Target index is outside the current round!", nil)
	case err != nil:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to fetch history!", nil)
	}

	if rec == nil {
		return middleware.JsonResponse(c, fiber.StatusOK, true, "Question not answered yet!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "History fetched!", rec)
}

// QuestionDetail returns one question with its answer and analysis, for the
// review view after grading
func (ctl *Controller) QuestionDetail(c *fiber.Ctx) error {
	questionId, err := c.ParamsInt("id")
	if err != nil || questionId <= 0 {
		return middleware.JsonResponse(c, fiber.StatusBadRequest, false, "Invalid question id!", nil)
	}

	q, err := ctl.Cache.GetQuestionByID(c.Context(), uint(questionId))
	if err != nil {
		return middleware.JsonResponse(c, fiber.StatusServiceUnavailable, false, "Question is unavailable right now!", nil)
	}
	if q == nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "Question not found!", nil)
	}

	opts := q.OptionsMap()
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Question fetched!", fiber.Map{
		"id":               q.ID,
		"type":             q.Type,
		"question":         q.Question,
		"options":          opts,
		"isMultipleChoice": q.IsMultipleChoice,
		"answer":           q.Answer,
		"answerDisplay":    practice.FormatAnswerDisplay(q.Answer, opts, q.IsMultipleChoice),
		"analysis":         q.Explanation,
	})
}

// CompleteSession ends the caller's active session and returns its summary
func (ctl *Controller) CompleteSession(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	sess, err := ctl.Manager.Complete(c.Context(), userId)
	switch {
	case errors.Is(err, practice.ErrNoActiveSession):
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "No active practice session!", nil)
	case errors.Is(err, practice.ErrInvalidSessionState):
		return middleware.JsonResponse(c, fiber.StatusConflict, false, "Session is not active!", nil)
	case err != nil:
		return middleware.JsonResponse(c, fiber.StatusInternalServerError, false, "Failed to complete practice!", nil)
	}

	return middleware.JsonResponse(c, fiber.StatusOK, true, "Practice completed!", summaryOf(sess))
}

// AbandonSession drops the caller's active session without a summary
func (ctl *Controller) AbandonSession(c *fiber.Ctx) error {
	userId := c.Locals("userId").(uint)

	if err := ctl.Manager.Abandon(userId); err != nil {
		return middleware.JsonResponse(c, fiber.StatusNotFound, false, "No active practice session!", nil)
	}
	return middleware.JsonResponse(c, fiber.StatusOK, true, "Practice abandoned!", nil)
}

func progressOf(sess *practice.Session) fiber.Map {
	return fiber.Map{
		"currentIndex":    sess.CurrentIndex,
		"roundTotal":      len(sess.WorkingSet),
		"roundNumber":     sess.RoundNumber,
		"initialTotal":    sess.InitialTotal,
		"correctFirstTry": sess.CorrectFirstTry,
	}
}

func summaryOf(sess *practice.Session) fiber.Map {
	accuracy := 0.0
	if sess.InitialTotal > 0 {
		accuracy = float64(sess.CorrectFirstTry) / float64(sess.InitialTotal) * 100
	}
	return fiber.Map{
		"sessionKey":      sess.Key,
		"tikuId":          sess.TikuID,
		"rounds":          sess.RoundNumber,
		"initialTotal":    sess.InitialTotal,
		"correctFirstTry": sess.CorrectFirstTry,
		"firstTryRate":    accuracy,
	}
}
