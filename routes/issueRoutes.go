package routes

import (
	"fixmycity-be/controllers"
	"fixmycity-be/middlewares"

	"github.com/gin-gonic/gin"
)

// IssueRoutes sets up the issue routes
func IssueRoutes(r *gin.Engine) {
	issue := r.Group("/api/issue")
	{
		issue.GET("/analytics", controllers.GetIssueAnalytics)
		issue.GET("/recent", controllers.RecentIssues)
		issue.GET("/:id", controllers.GetIssue)
		issue.POST("/report", middlewares.AuthMiddleware(), middlewares.ReportRateLimiter(5), controllers.ReportIssue)
		issue.POST("/:id/merge", middlewares.AuthMiddleware(), middlewares.ReportRateLimiter(5), controllers.MergeIntoIssue)
		issue.PATCH("/:id/status", middlewares.AuthMiddleware(), controllers.UpdateIssueStatus)
		issue.POST("/:id/vote", middlewares.AuthMiddleware(), controllers.VoteOnIssue)
		issue.POST("/:id/comment", middlewares.AuthMiddleware(), controllers.AddComment)
		issue.POST("/:id/announcement", middlewares.AuthMiddleware(), controllers.AddAnnouncement)
		issue.POST("/:id/feedback", middlewares.AuthMiddleware(), controllers.AddFeedback)
	}
}
