package mockapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // X-Timezone names resolve without a system zoneinfo

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/yukikurage/task-management-front/domain"
)

const ctxUserID = "mockapi.user_id"

// Register wires up all API routes on the provided Echo instance.
func (s *Server) Register(e *echo.Echo) {
	e.GET("/health", s.health)

	api := e.Group("/api")
	api.POST("/auth/signup", s.signup)
	api.POST("/auth/login", s.login)
	api.POST("/auth/logout", s.logout)

	authed := api.Group("", s.requireSession)
	authed.GET("/auth/me", s.me)

	authed.GET("/organizations", s.listOrganizations)
	authed.POST("/organizations", s.createOrganization)
	authed.POST("/organizations/join", s.joinOrganization)
	authed.GET("/organizations/:id", s.getOrganization)
	authed.POST("/organizations/:id/regenerate-code", s.regenerateInviteCode)

	authed.GET("/tasks", s.listTasks)
	authed.POST("/tasks", s.createTask)
	authed.POST("/tasks/generate", s.generateTasks)
	authed.GET("/tasks/:id", s.getTask)
	authed.PATCH("/tasks/:id", s.updateTask)
	authed.DELETE("/tasks/:id", s.deleteTask)
	authed.POST("/tasks/:id/assign", s.assignUsers)
	authed.POST("/tasks/:id/unassign", s.unassignUsers)
}

func (s *Server) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := s.sessions.userID(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized").SetInternal(err)
		}
		if _, ok := s.store.user(id); !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
		}
		c.Set(ctxUserID, id)
		return next(c)
	}
}

func currentUser(c echo.Context) int64 {
	id, _ := c.Get(ctxUserID).(int64)
	return id
}

// bindBody decodes and validates the request body into v.
func bindBody(c echo.Context, v any) error {
	if err := new(echo.DefaultBinder).BindBody(c, v); err != nil {
		return err
	}
	return c.Validate(v)
}

func pathID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, errNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found")
	case errors.Is(err, errForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "forbidden")
	case errors.Is(err, errConflict):
		return echo.NewHTTPError(http.StatusConflict, "conflict")
	case errors.Is(err, errBadCredential):
		return echo.NewHTTPError(http.StatusUnauthorized, errBadCredential.Error())
	case errors.Is(err, errNotMember):
		return echo.NewHTTPError(http.StatusBadRequest, errNotMember.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error").SetInternal(err)
	}
}

// viewerLocation resolves the caller's time zone from X-Timezone, falling
// back to UTC.
func viewerLocation(c echo.Context) *time.Location {
	name := strings.TrimSpace(c.Request().Header.Get(headerTimezone))
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// claimIdempotencyKey records the request's idempotency key. The returned
// release func forgets the key again when the command fails.
func (s *Server) claimIdempotencyKey(c echo.Context, userID int64) (func(failed bool), error) {
	noop := func(bool) {}
	key := strings.TrimSpace(c.Request().Header.Get(headerIdempotencyKey))
	if key == "" {
		return noop, nil
	}
	ctx := c.Request().Context()
	added, err := s.deduper.Add(ctx, userID, key)
	if err != nil {
		s.log.WithError(err).WithField("user_id", userID).Warn("mockapi: idempotency check failed")
		return noop, nil
	}
	if !added {
		return nil, echo.NewHTTPError(http.StatusConflict, "duplicate request")
	}
	return func(failed bool) {
		if !failed {
			return
		}
		if err := s.deduper.Remove(ctx, userID, key); err != nil {
			s.log.WithError(err).WithField("user_id", userID).Warn("mockapi: failed to release idempotency key")
		}
	}, nil
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) signup(c echo.Context) error {
	var creds domain.Credentials
	if err := bindBody(c, &creds); err != nil {
		return err
	}
	user, err := s.store.createUser(strings.TrimSpace(creds.Username), creds.Password)
	if errors.Is(err, errConflict) {
		return echo.NewHTTPError(http.StatusConflict, "username already taken")
	}
	if err != nil {
		return storeError(err)
	}
	if err := s.startSession(c, user.ID); err != nil {
		return err
	}
	s.log.WithField("user_id", user.ID).Info("mockapi: user signed up")
	return c.JSON(http.StatusCreated, user)
}

func (s *Server) login(c echo.Context) error {
	var creds domain.Credentials
	if err := bindBody(c, &creds); err != nil {
		return err
	}
	user, err := s.store.authenticate(strings.TrimSpace(creds.Username), creds.Password)
	if err != nil {
		return storeError(err)
	}
	if err := s.startSession(c, user.ID); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

func (s *Server) startSession(c echo.Context, userID int64) error {
	cookie, err := s.sessions.issue(userID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "session").SetInternal(err)
	}
	c.SetCookie(cookie)
	return nil
}

func (s *Server) logout(c echo.Context) error {
	c.SetCookie(s.sessions.expired())
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) me(c echo.Context) error {
	user, ok := s.store.user(currentUser(c))
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return c.JSON(http.StatusOK, user)
}

type organizationsResponse struct {
	Organizations []domain.Organization `json:"organizations"`
}

type createOrganizationRequest struct {
	Name string `json:"name" validate:"required"`
}

type joinOrganizationRequest struct {
	InviteCode string `json:"invite_code" validate:"required"`
}

type joinOrganizationResponse struct {
	Organization domain.Organization `json:"organization"`
}

func (s *Server) listOrganizations(c echo.Context) error {
	return c.JSON(http.StatusOK, organizationsResponse{Organizations: s.store.organizations(currentUser(c))})
}

func (s *Server) createOrganization(c echo.Context) (err error) {
	userID := currentUser(c)
	var req createOrganizationRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "name is required")
	}
	release, err := s.claimIdempotencyKey(c, userID)
	if err != nil {
		return err
	}
	defer func() { release(err != nil) }()

	org, err := s.store.createOrganization(userID, name)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusCreated, org)
}

func (s *Server) joinOrganization(c echo.Context) error {
	var req joinOrganizationRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	org, err := s.store.join(currentUser(c), req.InviteCode)
	switch {
	case errors.Is(err, errNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "invalid invite code")
	case errors.Is(err, errConflict):
		return echo.NewHTTPError(http.StatusConflict, "already a member")
	case err != nil:
		return storeError(err)
	}
	return c.JSON(http.StatusOK, joinOrganizationResponse{Organization: org})
}

func (s *Server) getOrganization(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	detail, err := s.store.organization(currentUser(c), id)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, detail)
}

func (s *Server) regenerateInviteCode(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	org, err := s.store.regenerateCode(currentUser(c), id)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, org)
}

type tasksResponse struct {
	Tasks []domain.TaskListItem `json:"tasks"`
}

type draftsResponse struct {
	Tasks []domain.TaskDraft `json:"tasks"`
}

func queryBool(c echo.Context, name string) (bool, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return v, nil
}

func (s *Server) listTasks(c echo.Context) error {
	f := taskFilter{now: s.now(), loc: viewerLocation(c)}
	if raw := c.QueryParam("organization_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid organization_id")
		}
		f.organizationID = id
	}
	var err error
	if f.dueToday, err = queryBool(c, "due_today"); err != nil {
		return err
	}
	if f.assignedToMe, err = queryBool(c, "assigned_to_me"); err != nil {
		return err
	}
	switch sort := c.QueryParam("sort"); sort {
	case "":
	case "due_date":
		f.sortByDue = true
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "unsupported sort "+sort)
	}
	return c.JSON(http.StatusOK, tasksResponse{Tasks: s.store.listTasks(currentUser(c), f)})
}

func (s *Server) createTask(c echo.Context) (err error) {
	userID := currentUser(c)
	var in domain.TaskInput
	if err := bindBody(c, &in); err != nil {
		return err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title is required")
	}
	release, err := s.claimIdempotencyKey(c, userID)
	if err != nil {
		return err
	}
	defer func() { release(err != nil) }()

	task, err := s.store.createTask(userID, in, s.now())
	if err != nil {
		return storeError(err)
	}
	s.log.WithFields(log.Fields{"task_id": task.ID, "organization_id": task.OrganizationID}).Debug("mockapi: task created")
	return c.JSON(http.StatusCreated, task)
}

func (s *Server) getTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	task, err := s.store.task(currentUser(c), id)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, task)
}

// parsePatch reads a partial update. An explicit null due_date clears it.
func parsePatch(raw map[string]any) (taskUpdate, error) {
	var u taskUpdate
	for key, value := range raw {
		switch key {
		case "title":
			title, ok := value.(string)
			if !ok || strings.TrimSpace(title) == "" {
				return u, echo.NewHTTPError(http.StatusBadRequest, "title is required")
			}
			title = strings.TrimSpace(title)
			u.title = &title
		case "description":
			desc, ok := value.(string)
			if !ok && value != nil {
				return u, echo.NewHTTPError(http.StatusBadRequest, "invalid description")
			}
			u.description = &desc
		case "due_date":
			if value == nil {
				u.clearDueDate = true
				continue
			}
			str, ok := value.(string)
			if !ok {
				return u, echo.NewHTTPError(http.StatusBadRequest, "invalid due_date")
			}
			due, err := time.Parse(time.RFC3339, str)
			if err != nil {
				return u, echo.NewHTTPError(http.StatusBadRequest, "invalid due_date")
			}
			u.dueDate = &due
		}
	}
	return u, nil
}

func (s *Server) updateTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	raw := map[string]any{}
	if err := new(echo.DefaultBinder).BindBody(c, &raw); err != nil {
		return err
	}
	u, err := parsePatch(raw)
	if err != nil {
		return err
	}
	task, err := s.store.updateTask(currentUser(c), id, u)
	if err != nil {
		return storeError(err)
	}
	return c.JSON(http.StatusOK, task)
}

func (s *Server) deleteTask(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.store.deleteTask(currentUser(c), id); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) assignUsers(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req domain.UserIDs
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if err := s.store.assign(currentUser(c), id, req.UserIDs); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) unassignUsers(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req domain.UserIDs
	if err := bindBody(c, &req); err != nil {
		return err
	}
	if err := s.store.unassign(currentUser(c), id, req.UserIDs); err != nil {
		return storeError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) generateTasks(c echo.Context) error {
	var req domain.GenerateRequest
	if err := bindBody(c, &req); err != nil {
		return err
	}
	drafts := generateDrafts(req.Text, s.now(), viewerLocation(c))
	return c.JSON(http.StatusOK, draftsResponse{Tasks: drafts})
}
