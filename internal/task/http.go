package task

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/adilbek/sisyphus/internal/auth"
	"github.com/adilbek/sisyphus/internal/reset"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dueDateLayout = "2006-01-02"

// userGetter loads user profiles; satisfied by the auth service. The today
// view needs the caller's reset time, which is not part of the token claims.
type userGetter interface {
	GetUser(ctx context.Context, id uuid.UUID) (auth.User, error)
}

// RegisterRoutes mounts task endpoints under /tasks. The group is expected
// to carry the auth middleware.
func RegisterRoutes(router *gin.RouterGroup, service *Service, users userGetter) {
	handler := &httpHandler{service: service, users: users}
	tasks := router.Group("/tasks")
	{
		tasks.GET("", handler.list)
		tasks.POST("", handler.create)
		tasks.GET("/today", handler.today)
		tasks.GET("/overdue", handler.overdue)
		tasks.GET("/categories", handler.categories)
		tasks.POST("/purge-completed", handler.purgeCompleted)
		tasks.POST("/bulk/complete", handler.bulkComplete)
		tasks.DELETE("/bulk/delete", handler.bulkDelete)
		tasks.PUT("/bulk/priority", handler.bulkPriority)
		tasks.GET("/:id", handler.get)
		tasks.PUT("/:id", handler.update)
		tasks.DELETE("/:id", handler.delete)
		tasks.POST("/:id/toggle", handler.toggle)
	}
}

type httpHandler struct {
	service *Service
	users   userGetter
}

type createTaskRequest struct {
	Title       string  `json:"title" binding:"required,max=255"`
	Description *string `json:"description" binding:"omitempty,max=4096"`
	Priority    *string `json:"priority" binding:"omitempty,oneof=low medium high"`
	Category    *string `json:"category" binding:"omitempty,max=100"`
	DueDate     *string `json:"due_date"`
}

type updateTaskRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Description *string `json:"description" binding:"omitempty,max=4096"`
	IsCompleted *bool   `json:"is_completed"`
	Priority    *string `json:"priority" binding:"omitempty,oneof=low medium high"`
	Category    *string `json:"category" binding:"omitempty,max=100"`
	DueDate     *string `json:"due_date"`
}

type bulkRequest struct {
	TaskIDs []string `json:"task_ids" binding:"required"`
}

type bulkPriorityRequest struct {
	TaskIDs  []string `json:"task_ids" binding:"required"`
	Priority string   `json:"priority" binding:"required,oneof=low medium high"`
}

type taskResponse struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description *string    `json:"description,omitempty"`
	IsCompleted bool       `json:"is_completed"`
	Priority    string     `json:"priority"`
	Category    *string    `json:"category,omitempty"`
	DueDate     *string    `json:"due_date,omitempty"`
	IsOverdue   bool       `json:"is_overdue"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

type taskListResponse struct {
	Tasks     []taskResponse `json:"tasks"`
	Total     int            `json:"total"`
	Completed int            `json:"completed"`
	Pending   int            `json:"pending"`
}

type todayTaskResponse struct {
	taskResponse
	Status string `json:"status"`
}

type todayResponse struct {
	WindowStart time.Time           `json:"window_start"`
	WindowEnd   time.Time           `json:"window_end"`
	Tasks       []todayTaskResponse `json:"tasks"`
}

func (h *httpHandler) list(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	opts, err := parseListOptions(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.service.List(c.Request.Context(), userID, opts)
	if err != nil {
		if errors.Is(err, ErrInvalidPriority) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "priority must be low, medium or high"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list tasks"})
		return
	}

	c.JSON(http.StatusOK, marshalListResponse(result, time.Now().UTC()))
}

func (h *httpHandler) today(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load profile"})
		return
	}

	items, window, err := h.service.TasksForToday(c.Request.Context(), user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to build today view"})
		return
	}

	resp := todayResponse{
		WindowStart: window.Start,
		WindowEnd:   window.End,
		Tasks:       make([]todayTaskResponse, 0, len(items)),
	}
	now := time.Now().UTC()
	for _, item := range items {
		resp.Tasks = append(resp.Tasks, todayTaskResponse{
			taskResponse: marshalTask(item.Task, now),
			Status:       item.Status.String(),
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (h *httpHandler) overdue(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	result, err := h.service.Overdue(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list overdue tasks"})
		return
	}

	c.JSON(http.StatusOK, marshalListResponse(result, time.Now().UTC()))
}

func (h *httpHandler) categories(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	categories, err := h.service.Categories(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list categories"})
		return
	}
	if categories == nil {
		categories = []string{}
	}

	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

func (h *httpHandler) create(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
		return
	}

	created, err := h.service.Create(c.Request.Context(), userID, CreateInput{
		Title:       req.Title,
		Description: req.Description,
		Priority:    req.Priority,
		Category:    req.Category,
		DueDate:     dueDate,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmptyTitle), errors.Is(err, ErrInvalidPriority):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create task"})
		}
		return
	}

	c.JSON(http.StatusCreated, marshalTask(created, time.Now().UTC()))
}

func (h *httpHandler) get(c *gin.Context) {
	userID, taskID, ok := h.requireTask(c)
	if !ok {
		return
	}

	t, err := h.service.Get(c.Request.Context(), userID, taskID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, marshalTask(t, time.Now().UTC()))
}

func (h *httpHandler) update(c *gin.Context) {
	userID, taskID, ok := h.requireTask(c)
	if !ok {
		return
	}

	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dueDate, err := parseDueDate(req.DueDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "due_date must be YYYY-MM-DD"})
		return
	}

	updated, err := h.service.Update(c.Request.Context(), userID, taskID, UpdateInput{
		Title:       req.Title,
		Description: req.Description,
		IsCompleted: req.IsCompleted,
		Priority:    req.Priority,
		Category:    req.Category,
		DueDate:     dueDate,
	})
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, marshalTask(updated, time.Now().UTC()))
}

func (h *httpHandler) delete(c *gin.Context) {
	userID, taskID, ok := h.requireTask(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, taskID); err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (h *httpHandler) toggle(c *gin.Context) {
	userID, taskID, ok := h.requireTask(c)
	if !ok {
		return
	}

	t, err := h.service.Toggle(c.Request.Context(), userID, taskID)
	if err != nil {
		respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, marshalTask(t, time.Now().UTC()))
}

func (h *httpHandler) purgeCompleted(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	n, err := h.service.PurgeCompleted(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to purge tasks"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": n})
}

func (h *httpHandler) bulkComplete(c *gin.Context) {
	h.bulk(c, func(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
		return h.service.BulkComplete(ctx, userID, ids)
	}, "completed")
}

func (h *httpHandler) bulkDelete(c *gin.Context) {
	h.bulk(c, func(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
		return h.service.BulkDelete(ctx, userID, ids)
	}, "deleted")
}

func (h *httpHandler) bulkPriority(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	var req bulkPriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids, err := parseTaskIDs(req.TaskIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := h.service.BulkSetPriority(c.Request.Context(), userID, ids, req.Priority)
	if err != nil {
		respondBulkError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": n})
}

func (h *httpHandler) bulk(c *gin.Context, op func(context.Context, uuid.UUID, []uuid.UUID) (int64, error), verb string) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return
	}

	var req bulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ids, err := parseTaskIDs(req.TaskIDs)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	n, err := op(c.Request.Context(), userID, ids)
	if err != nil {
		respondBulkError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{verb: n})
}

func (h *httpHandler) requireTask(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": auth.CodeTokenInvalid})
		return uuid.Nil, uuid.Nil, false
	}

	taskID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return uuid.Nil, uuid.Nil, false
	}
	return userID, taskID, true
}

func respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, ErrEmptyTitle), errors.Is(err, ErrInvalidPriority):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "task operation failed"})
	}
}

func respondBulkError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNoTaskIDs), errors.Is(err, ErrInvalidPriority):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSomeTasksNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "some tasks not found or not accessible"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "bulk operation failed"})
	}
}

func parseListOptions(c *gin.Context) (ListOptions, error) {
	var opts ListOptions

	if raw, ok := c.GetQuery("completed"); ok {
		completed, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.New("completed must be a boolean")
		}
		opts.Completed = &completed
	}
	if raw, ok := c.GetQuery("priority"); ok {
		opts.Priority = &raw
	}
	if raw, ok := c.GetQuery("category"); ok {
		opts.Category = &raw
	}
	if raw, ok := c.GetQuery("due_date"); ok {
		parsed, err := time.Parse(dueDateLayout, raw)
		if err != nil {
			return opts, errors.New("due_date must be YYYY-MM-DD")
		}
		opts.DueDate = &parsed
	}
	if raw, ok := c.GetQuery("overdue"); ok {
		overdue, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, errors.New("overdue must be a boolean")
		}
		opts.Overdue = &overdue
	}
	opts.Offset, _ = strconv.Atoi(c.DefaultQuery("skip", "0"))
	opts.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "0"))
	if opts.Offset < 0 {
		return opts, errors.New("skip must not be negative")
	}
	if opts.Limit < 0 || opts.Limit > maxPageSize {
		return opts, errors.New("limit out of range")
	}
	return opts, nil
}

func parseDueDate(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(dueDateLayout, *raw)
	if err != nil {
		return nil, err
	}
	return &parsed, nil
}

func parseTaskIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, ErrNoTaskIDs
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, r := range raw {
		id, err := uuid.Parse(r)
		if err != nil {
			return nil, errors.New("invalid task id: " + r)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func marshalTask(t Task, now time.Time) taskResponse {
	resp := taskResponse{
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		IsCompleted: t.IsCompleted,
		Priority:    string(t.Priority),
		Category:    t.Category,
		IsOverdue:   reset.IsOverdue(t.State(), now),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
	}
	if t.DueDate != nil {
		due := t.DueDate.UTC().Format(dueDateLayout)
		resp.DueDate = &due
	}
	if t.CompletedAt != nil {
		completed := t.CompletedAt.UTC()
		resp.CompletedAt = &completed
	}
	return resp
}

func marshalListResponse(result ListResult, now time.Time) taskListResponse {
	resp := taskListResponse{
		Tasks:     make([]taskResponse, 0, len(result.Tasks)),
		Total:     result.Total,
		Completed: result.Completed,
		Pending:   result.Pending,
	}
	for _, t := range result.Tasks {
		resp.Tasks = append(resp.Tasks, marshalTask(t, now))
	}
	return resp
}
