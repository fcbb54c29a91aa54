package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/student-portal/internal/dto"
	"github.com/noah-isme/student-portal/internal/models"
	"github.com/noah-isme/student-portal/internal/screen"
	appErrors "github.com/noah-isme/student-portal/pkg/errors"
	"github.com/noah-isme/student-portal/pkg/response"
)

const (
	defaultWait = 10 * time.Second
	maxWait     = 30 * time.Second
)

type portalService interface {
	CreateSession(ctx context.Context) (*dto.SessionResponse, error)
	CloseSession(ctx context.Context, id string) error
	Navigate(ctx context.Context, id, raw string) (*dto.SessionResponse, error)
	Screen(ctx context.Context, id string, wait bool) (*dto.SessionResponse, error)
	Reload(ctx context.Context, id string) (*dto.SessionResponse, error)
	ChangeLanguage(ctx context.Context, id string, req dto.LanguageChangeRequest) (*screen.Ticket, error)
	ToggleMembership(ctx context.Context, id, group string, joined *bool) (*screen.Ticket, error)
	SubmitHelp(ctx context.Context, id string, req models.HelpRequest) (*screen.Ticket, error)
}

// PortalHandler exposes sessions, navigation and screen mutations.
type PortalHandler struct {
	portal portalService
}

// NewPortalHandler constructs the handler.
func NewPortalHandler(portal portalService) *PortalHandler {
	return &PortalHandler{portal: portal}
}

// CreateSession godoc
// @Summary Open a portal session on the main menu
// @Tags Sessions
// @Produce json
// @Success 201 {object} response.Envelope
// @Router /sessions [post]
func (h *PortalHandler) CreateSession(c *gin.Context) {
	sess, err := h.portal.CreateSession(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, sess)
}

// CloseSession godoc
// @Summary Close a session and tear its screen down
// @Tags Sessions
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *PortalHandler) CloseSession(c *gin.Context) {
	if err := h.portal.CloseSession(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Navigate godoc
// @Summary Move a session to another screen
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.NavigateRequest true "Target screen"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/{id}/navigate [post]
func (h *PortalHandler) Navigate(c *gin.Context) {
	var req dto.NavigateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	sess, err := h.portal.Navigate(c.Request.Context(), c.Param("id"), req.Screen)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sess)
}

// Screen godoc
// @Summary Current screen state of a session
// @Tags Screens
// @Produce json
// @Param id path string true "Session ID"
// @Param wait query string false "Block until the load settles: true or a duration such as 2s"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/screen [get]
func (h *PortalHandler) Screen(c *gin.Context) {
	wait, err := waitParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	ctx := c.Request.Context()
	if wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait)
		defer cancel()
	}
	sess, err := h.portal.Screen(ctx, c.Param("id"), wait > 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sess)
}

// Reload godoc
// @Summary Reload the current screen
// @Tags Screens
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/screen/reload [post]
func (h *PortalHandler) Reload(c *gin.Context) {
	sess, err := h.portal.Reload(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sess)
}

// ChangeLanguage godoc
// @Summary Change the preferred language on the profile screen
// @Tags Mutations
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param wait query string false "Wait for the write to settle"
// @Param payload body dto.LanguageChangeRequest true "Language"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/profile/language [put]
func (h *PortalHandler) ChangeLanguage(c *gin.Context) {
	wait, err := waitParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.LanguageChangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	ticket, err := h.portal.ChangeLanguage(c.Request.Context(), c.Param("id"), req)
	h.respondMutation(c, ticket, wait, err)
}

// ToggleMembership godoc
// @Summary Join or leave a group
// @Description An empty body flips the joined flag.
// @Tags Mutations
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param name path string true "Group name"
// @Param wait query string false "Wait for the write to settle"
// @Param payload body dto.MembershipRequest false "Explicit joined flag"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions/{id}/groups/{name}/membership [post]
func (h *PortalHandler) ToggleMembership(c *gin.Context) {
	wait, err := waitParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.MembershipRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	ticket, err := h.portal.ToggleMembership(c.Request.Context(), c.Param("id"), c.Param("name"), req.Joined)
	h.respondMutation(c, ticket, wait, err)
}

// SubmitHelp godoc
// @Summary Submit the need-help form
// @Tags Mutations
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param wait query string false "Wait for the write to settle"
// @Param payload body models.HelpRequest true "Help request"
// @Success 202 {object} response.Envelope
// @Router /sessions/{id}/help [post]
func (h *PortalHandler) SubmitHelp(c *gin.Context) {
	wait, err := waitParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req models.HelpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	ticket, err := h.portal.SubmitHelp(c.Request.Context(), c.Param("id"), req)
	h.respondMutation(c, ticket, wait, err)
}

// respondMutation answers 202 with the optimistic state, or, when the caller
// asked to wait, 200 once the write succeeded and the error envelope when it
// failed. A wait that runs out still answers 202. wait is parsed before the
// mutation is submitted so a malformed query never leaves a write behind.
func (h *PortalHandler) respondMutation(c *gin.Context, ticket *screen.Ticket, wait time.Duration, err error) {
	if err != nil {
		response.Error(c, err)
		return
	}
	if wait > 0 {
		ctx, cancel := context.WithTimeout(c.Request.Context(), wait)
		defer cancel()
		_ = ticket.Wait(ctx)
	}

	settled := false
	select {
	case <-ticket.Done():
		settled = true
	default:
	}
	if settled && ticket.Err() != nil {
		response.Error(c, ticket.Err())
		return
	}

	sess, err := h.portal.Screen(c.Request.Context(), c.Param("id"), false)
	if err != nil {
		response.Error(c, err)
		return
	}
	body := dto.MutationResponse{Mutation: ticket.Mutation, State: sess.State, Settled: settled}
	if settled {
		response.JSON(c, http.StatusOK, body)
		return
	}
	response.Accepted(c, body)
}

// waitParam reads ?wait=. "true" waits up to defaultWait, a duration waits
// that long (capped at maxWait), anything false-like does not wait.
func waitParam(c *gin.Context) (time.Duration, error) {
	raw := strings.TrimSpace(c.Query("wait"))
	if raw == "" {
		return 0, nil
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		if b {
			return defaultWait, nil
		}
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "wait must be a boolean or a duration")
	}
	if d > maxWait {
		d = maxWait
	}
	return d, nil
}
