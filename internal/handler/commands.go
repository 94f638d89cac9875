package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/reqtrail/reqtrail/internal/pkg/apperrors"
	"github.com/reqtrail/reqtrail/internal/store"
)

// CommandHandler fronts the volatile command store. Everything behind these
// endpoints lives in process memory and is gone after a restart; replaying
// the request history is how the queue gets rebuilt.
type CommandHandler struct {
	store *store.CommandStore
}

func NewCommandHandler(s *store.CommandStore) *CommandHandler {
	return &CommandHandler{store: s}
}

func (h *CommandHandler) Enqueue(c *gin.Context) {
	var req struct {
		Command string `json:"command"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Command == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'command' is required."})
		return
	}

	h.store.Enqueue(req.Command)
	c.JSON(http.StatusOK, gin.H{
		"status":  "command added",
		"command": req.Command,
		"queue":   h.store.Commands(),
	})
}

func (h *CommandHandler) Queue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"queue": h.store.Commands()})
}

func (h *CommandHandler) Clear(c *gin.Context) {
	h.store.Clear()
	c.JSON(http.StatusOK, gin.H{"status": "queue cleared"})
}

func (h *CommandHandler) PutState(c *gin.Context) {
	key := c.Param("key")
	var req struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest("'value' is required"))
		return
	}
	h.store.Put(key, req.Value)
	c.JSON(http.StatusOK, gin.H{"key": key, "value": req.Value})
}

func (h *CommandHandler) GetState(c *gin.Context) {
	key := c.Param("key")
	value, err := h.store.Get(key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.Error(apperrors.NewNotFound("key not found: " + key))
			return
		}
		c.Error(apperrors.New(apperrors.ErrInternal, err.Error(), err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"key": key, "value": value})
}
