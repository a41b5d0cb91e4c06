package controllers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/complaintdesk/backend/internal/apperr"
	"github.com/complaintdesk/backend/internal/lifecycle"
	"github.com/complaintdesk/backend/internal/logger"
	"github.com/complaintdesk/backend/internal/middleware"
	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/progress"
	"github.com/complaintdesk/backend/internal/services"
	"github.com/complaintdesk/backend/internal/store"
	"github.com/gin-gonic/gin"
)

type ComplaintController struct {
	service *services.ComplaintService
}

func NewComplaintController(service *services.ComplaintService) *ComplaintController {
	return &ComplaintController{service: service}
}

type CitizenRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CreateComplaintRequest struct {
	Category    string         `json:"category"`
	Description string         `json:"description"`
	Location    string         `json:"location"`
	Priority    string         `json:"priority"`
	Citizen     CitizenRequest `json:"citizen"`
}

type StatusRequest struct {
	Status      string `json:"status"`
	Description string `json:"description"`
	Actor       string `json:"actor"`
	ActorRole   string `json:"actorRole"`
}

type OverrideRequest struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	Actor     string `json:"actor"`
	ActorRole string `json:"actorRole"`
}

type AssignRequest struct {
	TechnicianID   string `json:"technicianId"`
	TechnicianName string `json:"technicianName"`
	Specialty      string `json:"specialty"`
	AssignedBy     string `json:"assignedBy"`
	AssignedByRole string `json:"assignedByRole"`
}

// ProgressRequest carries technician hours as sent by the client. timeSpent
// may be a number or a numeric string.
type ProgressRequest struct {
	Notes      string      `json:"notes"`
	TimeSpent  interface{} `json:"timeSpent"`
	Technician string      `json:"technician"`
	Photos     []string    `json:"photos"`
}

type StartRequest struct {
	Technician string `json:"technician"`
}

type CompleteRequest struct {
	Technician string      `json:"technician"`
	Notes      string      `json:"notes"`
	TimeSpent  interface{} `json:"timeSpent"`
	Photos     []string    `json:"photos"`
}

type CommentRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	RefersTo    *int   `json:"refersTo"`
	Actor       string `json:"actor"`
	ActorRole   string `json:"actorRole"`
}

type PriorityRequest struct {
	Priority  string `json:"priority"`
	Actor     string `json:"actor"`
	ActorRole string `json:"actorRole"`
}

func (cc *ComplaintController) CreateComplaint(c *gin.Context) {
	var req CreateComplaintRequest
	if !bindBody(c, &req, false) {
		return
	}

	complaint, err := cc.service.Create(c.Request.Context(), lifecycle.CreateInput{
		Category:     req.Category,
		Description:  req.Description,
		Location:     req.Location,
		Priority:     req.Priority,
		CitizenName:  req.Citizen.Name,
		CitizenEmail: req.Citizen.Email,
		CitizenPhone: req.Citizen.Phone,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, complaint)
}

func (cc *ComplaintController) GetComplaints(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	cc.list(c, f)
}

func (cc *ComplaintController) GetCitizenComplaints(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	f.CitizenEmail = c.Param("email")
	cc.list(c, f)
}

func (cc *ComplaintController) GetTechnicianComplaints(c *gin.Context) {
	f, ok := filterFromQuery(c)
	if !ok {
		return
	}
	f.TechnicianID = c.Param("technicianId")
	cc.list(c, f)
}

func (cc *ComplaintController) list(c *gin.Context, f store.Filter) {
	f = f.Normalize()
	page, err := cc.service.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"complaints": page.Complaints,
		"total":      page.Total,
		"limit":      f.Limit,
		"skip":       f.Skip,
	})
}

func (cc *ComplaintController) GetStats(c *gin.Context) {
	st, err := cc.service.Stats(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, st)
}

func (cc *ComplaintController) GetTechnicianStats(c *gin.Context) {
	st, err := cc.service.TechnicianStats(c.Request.Context(), c.Param("technicianId"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, st)
}

func (cc *ComplaintController) GetComplaint(c *gin.Context) {
	complaint, err := cc.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, complaint)
}

func (cc *ComplaintController) GetTimeline(c *gin.Context) {
	newestFirst := strings.EqualFold(c.Query("order"), "desc")
	entries, err := cc.service.Timeline(c.Request.Context(), c.Param("id"), newestFirst)
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, entries)
}

func (cc *ComplaintController) AddTimelineEntry(c *gin.Context) {
	var req CommentRequest
	if !bindBody(c, &req, false) {
		return
	}

	complaint, err := cc.service.Comment(c.Request.Context(), c.Param("id"), lifecycle.CommentRequest{
		Title:       req.Title,
		Description: req.Description,
		RefersTo:    req.RefersTo,
		Actor:       actorFrom(c, req.Actor, req.ActorRole, models.RoleSystem),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, complaint)
}

func (cc *ComplaintController) GetProgress(c *gin.Context) {
	updates, total, err := cc.service.ProgressUpdates(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{
		"progressUpdates": updates,
		"totalTimeSpent":  total,
	})
}

func (cc *ComplaintController) AddProgress(c *gin.Context) {
	var req ProgressRequest
	if !bindBody(c, &req, false) {
		return
	}

	complaint, err := cc.service.AddProgress(c.Request.Context(), c.Param("id"), progress.Request{
		Notes:      req.Notes,
		TimeSpent:  req.TimeSpent,
		Technician: technicianFrom(c, req.Technician),
		Photos:     req.Photos,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusCreated, complaint)
}

func (cc *ComplaintController) UpdateStatus(c *gin.Context) {
	var req StatusRequest
	if !bindBody(c, &req, false) {
		return
	}

	complaint, err := cc.service.Transition(c.Request.Context(), c.Param("id"), services.TransitionRequest{
		Status:      req.Status,
		Description: req.Description,
		Actor:       actorFrom(c, req.Actor, req.ActorRole, models.RoleSystem),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, complaint)
}

func (cc *ComplaintController) Override(c *gin.Context) {
	var req OverrideRequest
	if !bindBody(c, &req, false) {
		return
	}

	complaint, err := cc.service.Override(c.Request.Context(), c.Param("id"), services.TransitionRequest{
		Status:      req.Status,
		Description: req.Reason,
		Actor:       actorFrom(c, req.Actor, req.ActorRole, models.RoleSystem),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, complaint)
}

func (cc *ComplaintController) Assign(c *gin.Context) {
	cc.assign(c, false)
}

func (cc *ComplaintController) Reassign(c *gin.Context) {
	cc.assign(c, true)
}

func (cc *ComplaintController) assign(c *gin.Context, explicit bool) {
	var req AssignRequest
	if !bindBody(c, &req, false) {
		return
	}

	assign := lifecycle.AssignRequest{
		TechnicianID:   req.TechnicianID,
		TechnicianName: req.TechnicianName,
		Specialty:      req.Specialty,
		AssignedBy:     actorFrom(c, req.AssignedBy, req.AssignedByRole, models.RoleOfficer),
	}

	var (
		complaint *models.Complaint
		err       error
	)
	if explicit {
		complaint, err = cc.service.Reassign(c.Request.Context(), c.Param("id"), assign)
	} else {
		complaint, err = cc.service.Assign(c.Request.Context(), c.Param("id"), assign)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, complaint)
}

func (cc *ComplaintController) ChangePriority(c *gin.Context) {
	var req PriorityRequest
	if !bindBody(c, &req, false) {
		return
	}

	complaint, err := cc.service.ChangePriority(c.Request.Context(), c.Param("id"), req.Priority,
		actorFrom(c, req.Actor, req.ActorRole, models.RoleOfficer))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, complaint)
}

func (cc *ComplaintController) StartWork(c *gin.Context) {
	var req StartRequest
	if !bindBody(c, &req, true) {
		return
	}

	complaint, err := cc.service.StartWork(c.Request.Context(), c.Param("id"), technicianFrom(c, req.Technician))
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, complaint)
}

func (cc *ComplaintController) Complete(c *gin.Context) {
	var req CompleteRequest
	if !bindBody(c, &req, true) {
		return
	}

	complaint, err := cc.service.Complete(c.Request.Context(), c.Param("id"), lifecycle.CompleteRequest{
		Technician: technicianFrom(c, req.Technician),
		Notes:      req.Notes,
		TimeSpent:  req.TimeSpent,
		Photos:     req.Photos,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, complaint)
}

func (cc *ComplaintController) DeleteComplaint(c *gin.Context) {
	actor := actorFrom(c, "", "", models.RoleAdmin)
	if err := cc.service.Delete(c.Request.Context(), c.Param("id"), actor); err != nil {
		respondError(c, err)
		return
	}
	respond(c, http.StatusOK, gin.H{"complaintId": c.Param("id"), "deleted": true})
}

// bindBody decodes the JSON body. An empty body is accepted when optional.
func bindBody(c *gin.Context, req interface{}, optional bool) bool {
	err := c.ShouldBindJSON(req)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   apperr.KindValidation,
		"message": "Invalid request body",
		"details": err.Error(),
	})
	return false
}

func filterFromQuery(c *gin.Context) (store.Filter, bool) {
	f := store.Filter{
		Status:       models.ComplaintStatus(strings.ToLower(c.Query("status"))),
		Category:     models.ComplaintCategory(c.Query("category")),
		Priority:     models.ComplaintPriority(strings.ToLower(c.Query("priority"))),
		CitizenEmail: c.Query("citizenEmail"),
		TechnicianID: c.Query("technicianId"),
		Sort:         c.Query("sort"),
		Desc:         !strings.EqualFold(c.Query("order"), "asc"),
	}

	v := &apperr.ValidationError{}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > store.MaxLimit {
			v.Add("limit", "must be a number between 1 and "+strconv.Itoa(store.MaxLimit))
		}
		f.Limit = n
	}
	if raw := c.Query("skip"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			v.Add("skip", "must be a non-negative number")
		}
		f.Skip = n
	}
	if f.Status != "" && !f.Status.Valid() {
		v.Add("status", "unknown status")
	}
	if err := v.OrNil(); err != nil {
		respondError(c, err)
		return store.Filter{}, false
	}
	return f, true
}

// actorFrom resolves who is acting. Explicit body values win over the
// identity from the bearer token, which wins over the anonymous default.
func actorFrom(c *gin.Context, name, role string, fallback models.ActorRole) lifecycle.Actor {
	actor := lifecycle.Actor{Name: "System", Role: fallback}
	if v := c.GetString(middleware.ActorNameKey); v != "" {
		actor.Name = v
	}
	if v, ok := c.Get(middleware.ActorRoleKey); ok {
		if r, ok := v.(models.ActorRole); ok && r.Valid() {
			actor.Role = r
		}
	}
	if n := strings.TrimSpace(name); n != "" {
		actor.Name = n
	}
	if r := models.ActorRole(strings.ToLower(strings.TrimSpace(role))); r.Valid() {
		actor.Role = r
	}
	return actor
}

func technicianFrom(c *gin.Context, name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return c.GetString(middleware.ActorNameKey)
}

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindInvalidTransition, apperr.KindConcurrentModification:
		return http.StatusConflict
	case apperr.KindResourceExhausted, apperr.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	body := gin.H{
		"success": false,
		"error":   kind,
		"message": err.Error(),
	}

	var validation *apperr.ValidationError
	var transition *apperr.InvalidTransitionError
	switch {
	case errors.As(err, &validation):
		body["details"] = validation.Fields
	case errors.As(err, &transition):
		body["details"] = gin.H{"from": transition.From, "to": transition.To}
	}

	switch kind {
	case apperr.KindInternal:
		logger.WithError(err, "complaint_controller").WithField("path", c.Request.URL.Path).Error("Unhandled error")
		body["message"] = "Internal server error"
	case apperr.KindStoreUnavailable, apperr.KindResourceExhausted:
		logger.WithError(err, "complaint_controller").WithField("path", c.Request.URL.Path).Warn("Request failed on the store")
	}

	c.JSON(StatusFor(kind), body)
}
