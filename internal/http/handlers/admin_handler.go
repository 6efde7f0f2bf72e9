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

type AdminHandler struct {
	userService *services.UserService
	taskService *services.TaskService
	auditRepo   *repositories.AuditRepo
	log         *zap.Logger
}

func NewAdminHandler(userService *services.UserService, taskService *services.TaskService, auditRepo *repositories.AuditRepo, log *zap.Logger) *AdminHandler {
	return &AdminHandler{userService: userService, taskService: taskService, auditRepo: auditRepo, log: log}
}

func (h *AdminHandler) ListUsers(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	users, err := h.userService.List(c.Context(), limit, offset)
	if err != nil {
		h.log.Error("list users failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}
	return c.JSON(dto.SuccessResponse{OK: true, Data: users})
}

func (h *AdminHandler) ChangeUserRole(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user id"})
	}

	var req dto.ChangeRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if msg, ok := validation.Struct(req); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
	}

	if err := h.userService.ChangeRole(c.Context(), id, req.Role); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
		}
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: err.Error()})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

func (h *AdminHandler) DeleteUser(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid user id"})
	}

	if err := h.userService.Delete(c.Context(), id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "user not found"})
		}
		h.log.Error("delete user failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true})
}

// UpdateAnyTask is the admin in-memory update of any task, including owner
// reassignment.
func (h *AdminHandler) UpdateAnyTask(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid task id"})
	}

	var req dto.AdminUpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid request"})
	}
	if msg, ok := validation.Struct(req); !ok {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: msg})
	}

	upd := services.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		Completed:   req.Completed,
	}
	if req.OwnerID != nil {
		ownerID, err := uuid.Parse(*req.OwnerID)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid owner id"})
		}
		upd.OwnerID = &ownerID
	}

	// Unscoped selector: admins may touch any owner's task.
	t, err := h.taskService.Update(c.Context(), middleware.GetActor(c), repositories.TaskSelector{ID: id}, upd)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Error: "task not found"})
		}
		h.log.Error("admin update task failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: t})
}

// ListAudit queries the audit trail, newest first.
func (h *AdminHandler) ListAudit(c *fiber.Ctx) error {
	filter := repositories.AuditFilter{Limit: 50}

	if v := c.Query("entity_type"); v != "" {
		filter.EntityType = &v
	}
	if v := c.Query("entity_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid entity_id"})
		}
		filter.EntityID = &id
	}
	if v := c.Query("actor_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid actor_id"})
		}
		filter.ActorID = &id
	}
	if v := c.Query("change_kind"); v != "" {
		if v != "create" && v != "update" && v != "delete" {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Error: "invalid change_kind"})
		}
		filter.ChangeKind = &v
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

	records, err := h.auditRepo.List(c.Context(), filter)
	if err != nil {
		h.log.Error("list audit failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Error: "internal error"})
	}

	return c.JSON(dto.SuccessResponse{OK: true, Data: records})
}
