package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyjia/tripflow/internal/domain/entity"
)

const (
	headerRequestID = "X-Request-ID"
	headerActorID   = "X-Actor-ID"
	headerActorRole = "X-Actor-Role"

	contextRequestID = "request_id"
	contextActor     = "actor"
)

// requestIDMiddleware propagates the caller's request id or assigns a new one
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(contextRequestID, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

// actorMiddleware reads the identity forwarded by the upstream auth collaborator.
// Malformed headers are rejected; absent headers leave the request anonymous.
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader(headerActorID))
		if rawID == "" {
			c.Next()
			return
		}

		id, err := strconv.ParseInt(rawID, 10, 64)
		if err != nil || id <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, Response{
				Success: false,
				Error:   "invalid " + headerActorID + " header",
				Code:    "VALIDATION_ERROR",
			})
			return
		}

		role := entity.Role(strings.ToLower(strings.TrimSpace(c.GetHeader(headerActorRole))))
		if role == "" {
			role = entity.RoleEmployee
		}

		c.Set(contextActor, entity.Actor{UserID: id, Role: role})
		c.Next()
	}
}

// requireActor rejects anonymous calls to mutating endpoints
func requireActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := actorFrom(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing " + headerActorID + " header",
				Code:    "UNAUTHENTICATED",
			})
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) (entity.Actor, bool) {
	v, ok := c.Get(contextActor)
	if !ok {
		return entity.Actor{}, false
	}
	actor, ok := v.(entity.Actor)
	return actor, ok
}
