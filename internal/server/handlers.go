package server

import (
	stderrors "errors"
	"net/http"
	"strconv"

	"todoapp/internal/domain/errors"
	"todoapp/internal/domain/models"
	"todoapp/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func statusFor(err error) int {
	switch {
	case stderrors.Is(err, errors.ErrInvalidToken):
		return http.StatusBadRequest
	case stderrors.Is(err, errors.ErrExpiredToken):
		return http.StatusGone
	case stderrors.Is(err, errors.ErrAlreadyVerified),
		stderrors.Is(err, errors.ErrUserAlreadyExists),
		stderrors.Is(err, errors.ErrConflict):
		return http.StatusConflict
	case stderrors.Is(err, errors.ErrNotFound), stderrors.Is(err, errors.ErrUserNotFound):
		return http.StatusNotFound
	case stderrors.Is(err, errors.ErrInvalidCredentials), stderrors.Is(err, errors.ErrUnauthorized):
		return http.StatusUnauthorized
	case stderrors.Is(err, errors.ErrTooManyRequests):
		return http.StatusTooManyRequests
	case errors.IsValidation(err), stderrors.Is(err, errors.ErrBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func errorBody(ctx *gin.Context, err error) (int, gin.H) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", ctx.Request.URL.Path).Msg("[ERROR] request failed")
		err = errors.ErrInternalServer
	}
	return status, gin.H{"error": err.Error(), "code": errors.Code(err)}
}

func writeError(ctx *gin.Context, err error) {
	ctx.JSON(errorBody(ctx, err))
}

func abortWithError(ctx *gin.Context, err error) {
	ctx.AbortWithStatusJSON(errorBody(ctx, err))
}

func bindJSON(ctx *gin.Context, dst any) bool {
	if err := ctx.ShouldBindJSON(dst); err != nil {
		writeError(ctx, errors.ErrBadRequest)
		return false
	}
	return true
}

func userBody(u *models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"username":   u.Username,
		"email":      u.Email,
		"created_at": u.CreatedAt,
	}
}

func (api *TodoAPI) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (api *TodoAPI) register(ctx *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(ctx, &req) {
		return
	}

	user, issued, err := api.accounts.Register(ctx.Request.Context(), req)
	if err != nil {
		writeError(ctx, err)
		return
	}

	verification := gin.H{"status": models.VerificationPending, "sent": false}
	if issued != nil {
		verification["sent"] = issued.Sent
	}
	ctx.JSON(http.StatusCreated, gin.H{
		"message":      "user created, check your email to verify the address",
		"user":         userBody(user),
		"verification": verification,
	})
}

func (api *TodoAPI) login(ctx *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(ctx, &req) {
		return
	}

	user, err := api.accounts.Login(ctx.Request.Context(), req)
	if err != nil {
		writeError(ctx, err)
		return
	}
	token, expires, err := api.issueSession(user.ID)
	if err != nil {
		writeError(ctx, err)
		return
	}
	setSessionCookie(ctx, token, int(sessionTTL.Seconds()))

	ctx.JSON(http.StatusOK, gin.H{
		"message":    "logged in",
		"token":      token,
		"expires_at": expires,
		"user":       userBody(user),
	})
}

func (api *TodoAPI) logout(ctx *gin.Context) {
	setSessionCookie(ctx, "", -1)
	ctx.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (api *TodoAPI) me(ctx *gin.Context) {
	user, err := api.accounts.GetUser(ctx.Request.Context(), currentUserID(ctx))
	if err != nil {
		writeError(ctx, err)
		return
	}
	v, err := api.verifications.Status(ctx.Request.Context(), user.ID)
	if err != nil {
		writeError(ctx, err)
		return
	}

	body := userBody(user)
	body["email_verified"] = v != nil && v.Verified
	if v != nil {
		body["verification_state"] = v.State(api.clock.Now())
	}
	ctx.JSON(http.StatusOK, gin.H{"user": body})
}

func (api *TodoAPI) deleteMe(ctx *gin.Context) {
	if err := api.accounts.DeleteAccount(ctx.Request.Context(), currentUserID(ctx)); err != nil {
		writeError(ctx, err)
		return
	}
	setSessionCookie(ctx, "", -1)
	ctx.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

func (api *TodoAPI) verifyEmail(ctx *gin.Context) {
	result, err := api.verifications.Verify(ctx.Request.Context(), ctx.Param("token"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	if result.AlreadyVerified {
		ctx.JSON(http.StatusOK, gin.H{"status": "already_verified", "message": "email was already verified"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":       "verified",
		"message":      "email verified",
		"welcome_sent": result.WelcomeSent,
	})
}

func (api *TodoAPI) resendVerification(ctx *gin.Context) {
	result, err := api.verifications.Issue(ctx.Request.Context(), currentUserID(ctx))
	if err != nil {
		writeError(ctx, err)
		return
	}
	body := gin.H{
		"status":  models.VerificationPending,
		"sent":    result.Sent,
		"rotated": result.Rotated,
	}
	if result.NotifyErr != nil {
		body["error"] = errors.ErrNotificationFailed.Error()
		body["code"] = "notification_failed"
	}
	ctx.JSON(http.StatusOK, body)
}

func (api *TodoAPI) requestPasswordReset(ctx *gin.Context) {
	var req models.PasswordResetRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := api.resets.RequestReset(ctx.Request.Context(), req.Email); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "if the address belongs to an account, a reset link has been sent"})
}

func (api *TodoAPI) confirmPasswordReset(ctx *gin.Context) {
	var req models.PasswordResetConfirmRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := api.resets.ConfirmReset(ctx.Request.Context(), ctx.Param("token"), req.Password); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "password updated"})
}

func parseTaskFilter(ctx *gin.Context) (models.TaskFilter, error) {
	var filter models.TaskFilter
	if raw := ctx.Query("completed"); raw != "" {
		done, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.ErrValidationFailed
		}
		filter.Completed = &done
	}
	filter.Priority = models.Priority(ctx.Query("priority"))
	filter.Category = models.Category(ctx.Query("category"))
	return filter, nil
}

func (api *TodoAPI) listTasks(ctx *gin.Context) {
	filter, err := parseTaskFilter(ctx)
	if err != nil {
		writeError(ctx, err)
		return
	}
	tasks, err := api.tasks.ListTasks(ctx.Request.Context(), currentUserID(ctx), filter)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"tasks": tasks})
}

func (api *TodoAPI) createTask(ctx *gin.Context) {
	var req models.CreateTaskRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := service.Validate(req); err != nil {
		writeError(ctx, err)
		return
	}
	task, err := api.tasks.CreateTask(ctx.Request.Context(), currentUserID(ctx), req.Draft())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"task": task})
}

func (api *TodoAPI) getTask(ctx *gin.Context) {
	task, err := api.tasks.GetTask(ctx.Request.Context(), currentUserID(ctx), ctx.Param("taskID"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"task": task})
}

func (api *TodoAPI) updateTask(ctx *gin.Context) {
	var req models.UpdateTaskRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := service.Validate(req); err != nil {
		writeError(ctx, err)
		return
	}
	task, err := api.tasks.UpdateTask(ctx.Request.Context(), currentUserID(ctx), ctx.Param("taskID"), req.Patch())
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"task": task})
}

func (api *TodoAPI) toggleTask(ctx *gin.Context) {
	task, err := api.tasks.ToggleTask(ctx.Request.Context(), currentUserID(ctx), ctx.Param("taskID"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"task": task})
}

func (api *TodoAPI) deleteTask(ctx *gin.Context) {
	if err := api.tasks.DeleteTask(ctx.Request.Context(), currentUserID(ctx), ctx.Param("taskID")); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (api *TodoAPI) addSubtask(ctx *gin.Context) {
	var req models.CreateSubtaskRequest
	if !bindJSON(ctx, &req) {
		return
	}
	if err := service.Validate(req); err != nil {
		writeError(ctx, err)
		return
	}
	subtask, err := api.tasks.AddSubtask(ctx.Request.Context(), currentUserID(ctx), ctx.Param("taskID"), req.Title, req.Order)
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusCreated, gin.H{"subtask": subtask})
}

func (api *TodoAPI) toggleSubtask(ctx *gin.Context) {
	subtask, err := api.tasks.ToggleSubtask(ctx.Request.Context(), currentUserID(ctx), ctx.Param("subtaskID"))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"subtask": subtask})
}

func (api *TodoAPI) deleteSubtask(ctx *gin.Context) {
	if err := api.tasks.DeleteSubtask(ctx.Request.Context(), currentUserID(ctx), ctx.Param("subtaskID")); err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "subtask deleted"})
}

func (api *TodoAPI) statistics(ctx *gin.Context) {
	result, err := api.stats.Statistics(ctx.Request.Context(), currentUserID(ctx))
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"statistics": result})
}
