package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/TFMV/deltaflow/pkg/core"
	"github.com/TFMV/deltaflow/pkg/wizard"
	"github.com/TFMV/deltaflow/report"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*wizard.Controller
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*wizard.Controller)}
}

func (st *sessionStore) put(c *wizard.Controller) string {
	id := uuid.NewString()
	st.mu.Lock()
	st.sessions[id] = c
	st.mu.Unlock()
	return id
}

func (st *sessionStore) get(id string) (*wizard.Controller, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	c, ok := st.sessions[id]
	return c, ok
}

func (st *sessionStore) delete(id string) (*wizard.Controller, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	c, ok := st.sessions[id]
	delete(st.sessions, id)
	return c, ok
}

func (st *sessionStore) wait() {
	st.mu.RLock()
	controllers := make([]*wizard.Controller, 0, len(st.sessions))
	for _, c := range st.sessions {
		controllers = append(controllers, c)
	}
	st.mu.RUnlock()
	for _, c := range controllers {
		c.Wait()
	}
}

type createSessionRequest struct {
	Files []core.FileRef `json:"files"`
}

type sessionResponse struct {
	ID    string       `json:"id"`
	State wizard.State `json:"state"`
}

func (s *Server) createSession(c *fiber.Ctx) error {
	var req createSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid body: "+err.Error())
	}
	if len(req.Files) != 2 {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("exactly 2 files are required, got %d", len(req.Files)))
	}
	for i, f := range req.Files {
		if len(f.Columns) > 0 || s.opts.Inspect == nil {
			continue
		}
		ref, err := s.opts.Inspect(f.ID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("inspecting %s: %v", f.ID, err))
		}
		if f.Name != "" {
			ref.Name = f.Name
		}
		req.Files[i] = ref
	}

	opts := []wizard.Option{wizard.WithLogger(s.logger)}
	if s.opts.ProcessName != "" {
		opts = append(opts, wizard.WithProcessName(s.opts.ProcessName))
	}
	if s.opts.Values != nil {
		opts = append(opts, wizard.WithValueCache(wizard.NewValueCache(s.opts.Values, s.opts.UniqueValuesLimit)))
	}
	ctrl, err := wizard.NewController(s.opts.Backend, req.Files, opts...)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	id := s.sessions.put(ctrl)
	s.logger.Info("Wizard session created", zap.String("session", id))
	return c.Status(fiber.StatusCreated).JSON(sessionResponse{ID: id, State: ctrl.Snapshot()})
}

func (s *Server) session(c *fiber.Ctx) (*wizard.Controller, error) {
	ctrl, ok := s.sessions.get(c.Params("id"))
	if !ok {
		return nil, fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return ctrl, nil
}

func (s *Server) getSession(c *fiber.Ctx) error {
	ctrl, err := s.session(c)
	if err != nil {
		return err
	}
	return c.JSON(ctrl.Snapshot())
}

func (s *Server) deleteSession(c *fiber.Ctx) error {
	if _, ok := s.sessions.delete(c.Params("id")); !ok {
		return fiber.NewError(fiber.StatusNotFound, "session not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) dispatchIntent(c *fiber.Ctx) error {
	ctrl, err := s.session(c)
	if err != nil {
		return err
	}
	req, err := decodeIntent(c.Body())
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	ctx := c.UserContext()
	var state wizard.State
	switch req.Type {
	case intentGenerateFromRequirements:
		state, err = ctrl.GenerateFromRequirements(ctx)
	case intentLoadRule:
		state, err = s.loadRule(ctx, ctrl, req.RuleID)
	default:
		state, err = ctrl.Dispatch(ctx, req.intent)
	}
	if err != nil {
		return intentError(err)
	}
	return c.JSON(state)
}

func (s *Server) loadRule(ctx context.Context, ctrl *wizard.Controller, id string) (wizard.State, error) {
	if s.opts.Rules == nil {
		return ctrl.Snapshot(), fiber.NewError(fiber.StatusNotImplemented, "saved rules are not available")
	}
	rule, err := s.opts.Rules.GetRule(ctx, id)
	if err != nil {
		return ctrl.Snapshot(), fmt.Errorf("%w: %v", errUpstream, err)
	}
	return ctrl.Dispatch(ctx, wizard.LoadConfig{Config: rule.RuleConfig})
}

var errUpstream = errors.New("backend request failed")

// intentError maps controller errors to HTTP statuses. Anything that is
// not a known wizard error comes from the backend.
func intentError(err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return err
	}
	for _, target := range []error{
		wizard.ErrNoKeyRules,
		wizard.ErrWrongStep,
		wizard.ErrIndexOutOfRange,
		wizard.ErrUnknownField,
		wizard.ErrUnknownFile,
		wizard.ErrUnknownColumn,
		wizard.ErrInvalidMatchType,
		wizard.ErrInvalidMethod,
		wizard.ErrUnknownRuleKind,
		wizard.ErrNotAtGenerateView,
		wizard.ErrEmptyRequirements,
		core.ErrUnsupportedVersion,
	} {
		if errors.Is(err, target) {
			return fiber.NewError(fiber.StatusConflict, err.Error())
		}
	}
	return fiber.NewError(fiber.StatusBadGateway, err.Error())
}

func (s *Server) getConfig(c *fiber.Ctx) error {
	ctrl, err := s.session(c)
	if err != nil {
		return err
	}
	state := ctrl.Snapshot()
	return c.JSON(state.Config())
}

func (s *Server) getReview(c *fiber.Ctx) error {
	ctrl, err := s.session(c)
	if err != nil {
		return err
	}
	format := c.Query("format", "json")
	gen, err := report.ForFormat(format)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if text, ok := gen.(*report.TextReportGenerator); ok {
		text.NoColor = true
	}

	state := ctrl.Snapshot()
	data, err := gen.GenerateReview(report.NewReview(state.Config(), state.Files))
	if err != nil {
		return err
	}
	switch format {
	case "html":
		c.Type("html", "utf-8")
	case "text":
		c.Type("txt", "utf-8")
	default:
		c.Type("json", "utf-8")
	}
	return c.Send(data)
}

func (s *Server) getUniqueValues(c *fiber.Ctx) error {
	ctrl, err := s.session(c)
	if err != nil {
		return err
	}
	file := core.FileKey(c.Query("file"))
	column := c.Query("column")
	if column == "" {
		return fiber.NewError(fiber.StatusBadRequest, "column is required")
	}

	values, err := ctrl.UniqueValues(c.UserContext(), file, column)
	switch {
	case errors.Is(err, wizard.ErrUnknownFile):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, wizard.ErrNoValueSource):
		return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
	case err != nil:
		return fiber.NewError(fiber.StatusBadGateway, err.Error())
	}
	return c.JSON(fiber.Map{"file": file, "column": column, "values": values})
}
