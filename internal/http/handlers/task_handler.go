package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tasktrack/backend/internal/http/dto"
	"github.com/tasktrack/backend/internal/middleware"
	"github.com/tasktrack/backend/internal/repositories"
	"github.com/tasktrack/backend/internal/services"
	"github.com/tasktrack/backend/internal/validation"
)

type TaskHandler struct {
	taskService *services.TaskService
	log         *zap.Logger
}

func NewTaskHandler(taskService *services.TaskService, log *zap.Logger) *TaskHandler {
	return &TaskHandler{taskService: taskService, log: log}
}

// ownSelector scopes the task id from the path to the authenticated caller.
func ownSelector(c *fiber.Ctx) (repositories.TaskSelector, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return repositories.TaskSelector{}, err
	}
	ownerID := middleware.GetUserID(c)
	return repositories.TaskSelector{ID: id, OwnerID: &ownerID}, nil
}

func (h *TaskHandler) CreateTask(c *fiber.Ctx) error {
	var req dto.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if msg, ok := validation.Struct(req); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
	}

	t, err := h.taskService.Create(c.Context(), middleware.GetActor(c), middleware.GetUserID(c), req.Title, req.Description)
	if err != nil {
		h.log.Error("create task failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{OK: true, Data: t})
}

func (h *TaskHandler) ListTasks(c *fiber.Ctx) error {
	filter := repositories.TaskFilter{Limit: 20}

	if v := c.Query("completed"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			filter.Completed = &b
		}
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			filter.Offset = n
		}
	}

	tasks, err := h.taskService.List(c.Context(), middleware.GetUserID(c), filter)
	if err != nil {
		h.log.Error("list tasks failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: tasks})
}

func (h *TaskHandler) GetTask(c *fiber.Ctx) error {
	sel, err := ownSelector(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid task id"})
	}

	t, err := h.taskService.Get(c.Context(), sel)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "task not found"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: t})
}

// UpdateTask is the in-memory pathway: load, mutate through the edit
// tracker, save.
func (h *TaskHandler) UpdateTask(c *fiber.Ctx) error {
	sel, err := ownSelector(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid task id"})
	}

	var req dto.UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if msg, ok := validation.Struct(req); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
	}

	t, err := h.taskService.Update(c.Context(), middleware.GetActor(c), sel, services.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "task not found"})
		}
		h.log.Error("update task failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: t})
}

// PatchTask is the atomic conditional update pathway.
func (h *TaskHandler) PatchTask(c *fiber.Ctx) error {
	sel, err := ownSelector(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid task id"})
	}

	var req dto.UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if msg, ok := validation.Struct(req); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
	}

	t, err := h.taskService.Patch(c.Context(), middleware.GetActor(c), sel, repositories.TaskPatch{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "task not found"})
		}
		h.log.Error("patch task failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: t})
}

// DeleteTask is the atomic conditional delete pathway.
func (h *TaskHandler) DeleteTask(c *fiber.Ctx) error {
	sel, err := ownSelector(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid task id"})
	}

	if err := h.taskService.Delete(c.Context(), middleware.GetActor(c), sel); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "task not found"})
		}
		h.log.Error("delete task failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}
