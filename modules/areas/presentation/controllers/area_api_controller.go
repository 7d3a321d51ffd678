package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/pocotu/oficri-areas/modules/areas/domain/area"
	"github.com/pocotu/oficri-areas/modules/areas/domain/hierarchy"
	"github.com/pocotu/oficri-areas/modules/areas/presentation/mappers"
	"github.com/pocotu/oficri-areas/modules/areas/presentation/viewmodels"
	"github.com/pocotu/oficri-areas/modules/areas/services"
	"github.com/pocotu/oficri-areas/pkg/composables"
	"github.com/pocotu/oficri-areas/pkg/constants"
	"github.com/pocotu/oficri-areas/pkg/httpapi"
)

const defaultInitiatorHeader = "X-Initiator-ID"

type AreaAPIController struct {
	areas           *services.AreaService
	apiPrefix       string
	initiatorHeader string
	middlewares     []mux.MiddlewareFunc
}

type ControllerOption func(*AreaAPIController)

// WithMiddlewares runs mws around every API route, after the global stack.
func WithMiddlewares(mws ...mux.MiddlewareFunc) ControllerOption {
	return func(c *AreaAPIController) { c.middlewares = append(c.middlewares, mws...) }
}

func WithInitiatorHeader(header string) ControllerOption {
	return func(c *AreaAPIController) {
		if strings.TrimSpace(header) != "" {
			c.initiatorHeader = header
		}
	}
}

func NewAreaAPIController(areas *services.AreaService, opts ...ControllerOption) *AreaAPIController {
	c := &AreaAPIController{
		areas:           areas,
		apiPrefix:       "/areas/api",
		initiatorHeader: defaultInitiatorHeader,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *AreaAPIController) Key() string {
	return c.apiPrefix
}

// Register adds every route flat on r. A PathPrefix subrouter would swallow
// method mismatches, turning 405 into 404.
func (c *AreaAPIController) Register(r *mux.Router) {
	c.handle(r, "/tree", "tree", c.GetTree, http.MethodGet)
	c.handle(r, "/check", "check", c.Check, http.MethodGet)

	c.handle(r, "/nodes", "create", c.CreateNode, http.MethodPost)
	c.handle(r, "/nodes/{id}", "get", c.GetNode, http.MethodGet)
	c.handle(r, "/nodes/{id}", "update", c.UpdateNode, http.MethodPatch)
	c.handle(r, "/nodes/{id}", "delete", c.DeleteNode, http.MethodDelete)
	c.handle(r, "/nodes/{id}:move", "move", c.MoveNode, http.MethodPost)
	c.handle(r, "/nodes/{id}/path", "path", c.GetPath, http.MethodGet)
	c.handle(r, "/nodes/{id}/descendants", "descendants", c.GetDescendants, http.MethodGet)
	c.handle(r, "/nodes/{id}/ancestors/{ancestor_id}", "ancestry", c.IsAncestor, http.MethodGet)
}

// handle wraps h with the controller middlewares, first one outermost.
func (c *AreaAPIController) handle(r *mux.Router, path, endpoint string, h http.HandlerFunc, method string) {
	var handler http.Handler = instrumentAPI(endpoint, h)
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		handler = c.middlewares[i].Middleware(handler)
	}
	r.Handle(c.apiPrefix+path, handler).Methods(method)
}

type treeResponse struct {
	TenantID string                    `json:"tenant_id"`
	RootID   *uuid.UUID                `json:"root_id,omitempty"`
	Nodes    []viewmodels.AreaTreeNode `json:"nodes"`
}

func (c *AreaAPIController) GetTree(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()

	rootID, err := parseOptionalUUID(q.Get("root_id"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "AREA_INVALID_QUERY", "root_id is invalid")
		return
	}
	selectedID, err := parseOptionalUUID(q.Get("selected_id"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "AREA_INVALID_QUERY", "selected_id is invalid")
		return
	}
	includeInactive, err := parseBoolParam(q.Get("include_inactive"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "AREA_INVALID_QUERY", "include_inactive is invalid")
		return
	}

	roots, err := c.areas.GetTree(r.Context(), tenantID, services.TreeQuery{RootID: rootID, IncludeInactive: includeInactive})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, treeResponse{
		TenantID: tenantID.String(),
		RootID:   rootID,
		Nodes:    mappers.TreeToViewModel(roots, selectedID).Nodes,
	})
}

func (c *AreaAPIController) Check(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	issues, err := c.areas.Check(r.Context(), tenantID)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	if issues == nil {
		issues = []hierarchy.Issue{}
	}
	type checkResponse struct {
		TenantID string            `json:"tenant_id"`
		Healthy  bool              `json:"healthy"`
		Issues   []hierarchy.Issue `json:"issues"`
	}
	writeJSON(w, http.StatusOK, checkResponse{
		TenantID: tenantID.String(),
		Healthy:  len(issues) == 0,
		Issues:   issues,
	})
}

func (c *AreaAPIController) GetNode(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	nodeID, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	a, err := c.areas.GetArea(r.Context(), tenantID, nodeID)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

type pathResponse struct {
	NodeID string      `json:"node_id"`
	Depth  int         `json:"depth"`
	Path   []area.Area `json:"path"`
}

func (c *AreaAPIController) GetPath(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	nodeID, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	res, err := c.areas.GetPath(r.Context(), tenantID, nodeID)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, pathResponse{NodeID: nodeID.String(), Depth: res.Depth, Path: res.Path})
}

func (c *AreaAPIController) GetDescendants(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	nodeID, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	descendants, err := c.areas.GetDescendants(r.Context(), tenantID, nodeID)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	type descendantsResponse struct {
		NodeID      string      `json:"node_id"`
		Descendants []area.Area `json:"descendants"`
	}
	writeJSON(w, http.StatusOK, descendantsResponse{NodeID: nodeID.String(), Descendants: descendants})
}

func (c *AreaAPIController) IsAncestor(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	nodeID, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	ancestorID, ok := pathUUID(w, r, requestID, "ancestor_id")
	if !ok {
		return
	}
	isAncestor, err := c.areas.IsAncestor(r.Context(), tenantID, ancestorID, nodeID)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	type ancestryResponse struct {
		NodeID     string `json:"node_id"`
		AncestorID string `json:"ancestor_id"`
		IsAncestor bool   `json:"is_ancestor"`
	}
	writeJSON(w, http.StatusOK, ancestryResponse{NodeID: nodeID.String(), AncestorID: ancestorID.String(), IsAncestor: isAncestor})
}

type createAreaRequest struct {
	ID       *uuid.UUID `json:"id"`
	ParentID *uuid.UUID `json:"parent_id"`
	Label    string     `json:"label" validate:"required,max=255"`
	IsActive *bool      `json:"is_active"`
}

type mutationResponse struct {
	RequestID string      `json:"request_id,omitempty"`
	DryRun    bool        `json:"dry_run"`
	Ops       []planOp    `json:"ops"`
	Area      *area.Area  `json:"area,omitempty"`
	EventIDs  []uuid.UUID `json:"event_ids"`
}

type planOp struct {
	Kind     hierarchy.OpKind `json:"kind"`
	NodeID   uuid.UUID        `json:"node_id"`
	ParentID *uuid.UUID       `json:"parent_id"`
	Summary  string           `json:"summary"`
}

func toMutationResponse(requestID string, res *services.MutationResult) mutationResponse {
	out := mutationResponse{
		RequestID: requestID,
		DryRun:    res.DryRun,
		Ops:       make([]planOp, 0, res.Plan.Len()),
		Area:      res.Area,
		EventIDs:  make([]uuid.UUID, 0, len(res.GeneratedEvents)),
	}
	for _, op := range res.Plan.Ops {
		out.Ops = append(out.Ops, planOp{Kind: op.Kind, NodeID: op.NodeID, ParentID: op.ParentID, Summary: op.String()})
	}
	for _, ev := range res.GeneratedEvents {
		out.EventIDs = append(out.EventIDs, ev.EventID)
	}
	return out
}

func (c *AreaAPIController) CreateNode(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	var req createAreaRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	in := services.CreateAreaInput{ParentID: req.ParentID, Label: req.Label, IsActive: req.IsActive}
	if req.ID != nil {
		in.ID = *req.ID
	}
	res, err := c.areas.CreateArea(r.Context(), tenantID, requestID, c.initiator(r), in)
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMutationResponse(requestID, res))
}

type updateAreaRequest struct {
	Label    *string `json:"label" validate:"omitempty,max=255"`
	IsActive *bool   `json:"is_active"`
}

func (c *AreaAPIController) UpdateNode(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	nodeID, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var req updateAreaRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	res, err := c.areas.UpdateArea(r.Context(), tenantID, requestID, c.initiator(r), services.UpdateAreaInput{
		ID:       nodeID,
		Label:    req.Label,
		IsActive: req.IsActive,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(requestID, res))
}

type moveAreaRequest struct {
	TargetID *uuid.UUID `json:"target_id"`
	Position string     `json:"position" validate:"required"`
	DryRun   bool       `json:"dry_run"`
}

func (c *AreaAPIController) MoveNode(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	nodeID, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	var req moveAreaRequest
	if !decodeBody(w, r, requestID, &req) {
		return
	}
	res, err := c.areas.MoveArea(r.Context(), tenantID, requestID, c.initiator(r), services.MoveAreaInput{
		NodeID:   nodeID,
		TargetID: req.TargetID,
		Position: req.Position,
		DryRun:   req.DryRun,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(requestID, res))
}

func (c *AreaAPIController) DeleteNode(w http.ResponseWriter, r *http.Request) {
	tenantID, requestID, ok := requireTenant(w, r)
	if !ok {
		return
	}
	nodeID, ok := pathUUID(w, r, requestID, "id")
	if !ok {
		return
	}
	q := r.URL.Query()
	cascade, err := parseBoolParam(q.Get("cascade"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "AREA_INVALID_QUERY", "cascade is invalid")
		return
	}
	dryRun, err := parseBoolParam(q.Get("dry_run"))
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "AREA_INVALID_QUERY", "dry_run is invalid")
		return
	}
	res, err := c.areas.DeleteArea(r.Context(), tenantID, requestID, c.initiator(r), services.DeleteAreaInput{
		NodeID:  nodeID,
		Cascade: cascade,
		DryRun:  dryRun,
	})
	if err != nil {
		writeServiceError(w, requestID, err)
		return
	}
	writeJSON(w, http.StatusOK, toMutationResponse(requestID, res))
}

// initiator is informational only; a missing or malformed header yields uuid.Nil.
func (c *AreaAPIController) initiator(r *http.Request) uuid.UUID {
	id, err := uuid.Parse(strings.TrimSpace(r.Header.Get(c.initiatorHeader)))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func requireTenant(w http.ResponseWriter, r *http.Request) (uuid.UUID, string, bool) {
	requestID := composables.UseRequestID(r.Context())
	tenantID, err := composables.UseTenantID(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "TENANT_REQUIRED", "tenant is required")
		return uuid.Nil, requestID, false
	}
	return tenantID, requestID, true
}

func pathUUID(w http.ResponseWriter, r *http.Request, requestID, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "AREA_INVALID_QUERY", "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, requestID string, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "AREA_INVALID_BODY", "invalid json body")
		return false
	}
	if err := constants.Validate.Struct(dst); err != nil {
		writeAPIError(w, http.StatusBadRequest, requestID, "AREA_INVALID_BODY", validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "invalid json body"
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid (%s)", fe.Field(), fe.Tag())
	}
}

func parseOptionalUUID(raw string) (*uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseBoolParam(raw string) (bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func writeServiceError(w http.ResponseWriter, requestID string, err error) {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		writeAPIError(w, svcErr.Status, requestID, svcErr.Code, svcErr.Message)
		return
	}
	writeAPIError(w, http.StatusInternalServerError, requestID, "AREA_INTERNAL", err.Error())
}

func writeAPIError(w http.ResponseWriter, status int, requestID, code, message string) {
	meta := map[string]string{}
	if requestID != "" {
		meta["request_id"] = requestID
	}
	_ = httpapi.WriteError(w, status, code, message, meta)
}

func writeJSON[T any](w http.ResponseWriter, status int, payload T) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
