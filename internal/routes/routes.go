package routes

import (
	"github.com/complaintdesk/backend/internal/controllers"
	"github.com/complaintdesk/backend/internal/middleware"
	"github.com/complaintdesk/backend/internal/models"
	"github.com/complaintdesk/backend/internal/services"
	"github.com/gin-gonic/gin"
)

// Dependencies are the collaborators the HTTP layer needs
type Dependencies struct {
	Complaints   *services.ComplaintService
	JWTSecret    string
	AuthRequired bool
	Backend      string
	Version      string
}

// SetupRoutes configures all application routes
func SetupRoutes(r *gin.Engine, deps Dependencies) {
	complaintController := controllers.NewComplaintController(deps.Complaints)
	healthController := controllers.NewHealthController(deps.Complaints, deps.Backend, deps.Version)

	r.GET("/health", healthController.Health)

	// Without mandatory tokens the admin gate falls back to the role check in
	// the lifecycle, so local setups can exercise every route.
	var adminOnly []gin.HandlerFunc
	if deps.AuthRequired {
		adminOnly = append(adminOnly, middleware.RequireRole(models.RoleAdmin))
	}

	api := r.Group("/api/v1")
	{
		protected := api.Group("/")
		protected.Use(middleware.Identity(deps.JWTSecret, deps.AuthRequired))
		{
			complaints := protected.Group("/complaints")
			{
				complaints.POST("", complaintController.CreateComplaint)
				complaints.GET("", complaintController.GetComplaints)
				complaints.GET("/stats", complaintController.GetStats)
				complaints.GET("/citizen/:email", complaintController.GetCitizenComplaints)
				complaints.GET("/technician/:technicianId", complaintController.GetTechnicianComplaints)
				complaints.GET("/:id", complaintController.GetComplaint)
				complaints.GET("/:id/timeline", complaintController.GetTimeline)
				complaints.POST("/:id/timeline", complaintController.AddTimelineEntry)
				complaints.GET("/:id/progress", complaintController.GetProgress)
				complaints.POST("/:id/progress", complaintController.AddProgress)
				complaints.PATCH("/:id/status", complaintController.UpdateStatus)
				complaints.PATCH("/:id/assign", complaintController.Assign)
				complaints.PATCH("/:id/reassign", complaintController.Reassign)
				complaints.PATCH("/:id/priority", complaintController.ChangePriority)
				complaints.POST("/:id/start", complaintController.StartWork)
				complaints.POST("/:id/complete", complaintController.Complete)
				complaints.POST("/:id/override", append(adminOnly, complaintController.Override)...)
				complaints.DELETE("/:id", append(adminOnly, complaintController.DeleteComplaint)...)
			}

			technicians := protected.Group("/technicians")
			{
				technicians.GET("/:technicianId/stats", complaintController.GetTechnicianStats)
			}
		}
	}
}
