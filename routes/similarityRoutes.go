package routes

import (
	"fixmycity-be/controllers"

	"github.com/gin-gonic/gin"
)

// SimilarityRoutes exposes the duplicate search endpoint. The path is kept
// as the portal frontend already calls it.
func SimilarityRoutes(r *gin.Engine) {
	r.POST("/find_similar", controllers.FindSimilar)
}
