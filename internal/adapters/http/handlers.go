package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/dkeye/clanchat/internal/adapters/signal"
	"github.com/dkeye/clanchat/internal/adapters/store"
	"github.com/dkeye/clanchat/internal/app/orch"
	"github.com/dkeye/clanchat/internal/core"
	"github.com/dkeye/clanchat/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

const (
	userKey             = "user"
	defaultHistoryLimit = 100
	maxHistoryLimit     = 500
)

// Directory is the read side of the server store used by the REST routes.
type Directory interface {
	IsMember(ctx context.Context, serverName string, userID domain.UserID) (bool, error)
	Members(ctx context.Context, serverName string) ([]domain.User, error)
	Channels(ctx context.Context, serverName string) ([]string, error)
	History(ctx context.Context, serverName, channel string, limit int) ([]domain.Message, error)
}

// MemberView is a server member annotated with presence.
type MemberView struct {
	ID       domain.UserID `json:"id"`
	Username string        `json:"username"`
	Online   bool          `json:"online"`
}

type handlers struct {
	orch *orch.Orchestrator
	dir  Directory
}

func RequireUser(v core.IdentityVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := v.Verify(c.GetString(signal.TokenKey))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *domain.User {
	u, _ := c.MustGet(userKey).(*domain.User)
	return u
}

// requireMember answers 404 for servers the caller does not belong to,
// so their existence is not disclosed.
func (h *handlers) requireMember(c *gin.Context, serverName string) bool {
	ok, err := h.dir.IsMember(c.Request.Context(), serverName, currentUser(c).ID)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.http").Str("server", serverName).Msg("membership check")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
		return false
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown server"})
		return false
	}
	return true
}

func (h *handlers) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"rooms": h.orch.Router.Rooms()})
}

func (h *handlers) listMembers(c *gin.Context) {
	name := c.Param("name")
	if !h.requireMember(c, name) {
		return
	}
	members, err := h.dir.Members(c.Request.Context(), name)
	if err != nil {
		h.storeError(c, err)
		return
	}
	channels, err := h.dir.Channels(c.Request.Context(), name)
	if err != nil {
		h.storeError(c, err)
		return
	}
	out := make([]MemberView, 0, len(members))
	for _, m := range members {
		out = append(out, MemberView{ID: m.ID, Username: m.Username, Online: h.orch.IsOnline(m.ID)})
	}
	c.JSON(http.StatusOK, gin.H{"members": out, "channels": channels})
}

func (h *handlers) history(c *gin.Context) {
	name := c.Param("name")
	if !h.requireMember(c, name) {
		return
	}
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}
	msgs, err := h.dir.History(c.Request.Context(), name, c.Param("channel"), limit)
	if err != nil {
		h.storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func (h *handlers) storeError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrServerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown server"})
		return
	}
	log.Error().Err(err).Str("module", "adapters.http").Msg("store")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal"})
}
