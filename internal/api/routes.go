package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/example/studentkit/internal/config"
	"github.com/example/studentkit/internal/core"
	"github.com/example/studentkit/internal/metrics"
	"github.com/example/studentkit/internal/middleware"
)

// Services are the core services behind the HTTP API.
type Services struct {
	Profiles      core.ProfileService
	Sharing       core.SharingService
	Collaboration core.CollaborationService
	Accounts      core.AccountService
	UMS           core.UMSImportService
}

// SetupRoutes configures all the application routes with their handlers and middleware.
// Global middleware (logging, recovery, CORS) is expected to be applied by the caller.
func SetupRoutes(
	router *gin.Engine,
	appConfig *config.Config,
	logger *zap.Logger,
	verifier middleware.TokenVerifier,
	services Services,
	m *metrics.Metrics,
) {
	authMW := middleware.NewAuthMiddleware(verifier, logger)

	profileHandler := NewProfileHandler(services.Profiles, logger)
	streamHandler := NewStreamHandler(services.Profiles, services.Collaboration, logger)
	shareHandler := NewShareHandler(services.Profiles, services.Sharing, logger)
	collabHandler := NewCollaborationHandler(services.Collaboration, logger)
	accountHandler := NewAccountHandler(services.Accounts, logger)
	umsHandler := NewUMSHandler(services.UMS, logger)
	calcHandler := NewCalculatorHandler(logger)

	apiV1 := router.Group("/api/v1")
	{
		apiV1.POST("/auth/signup", accountHandler.SignUp)

		users := apiV1.Group("/users", authMW.VerifyToken())
		{
			users.POST("/initialize", accountHandler.Initialize)
			users.GET("/me", accountHandler.Me)
			users.PATCH("/me/preferences", accountHandler.UpdatePreferences)
			users.POST("/me/password", accountHandler.ChangePassword)
			users.GET("/me/providers", accountHandler.Providers)
			users.POST("/me/signout", accountHandler.SignOut)
			users.DELETE("/me", accountHandler.Delete)
			users.GET("/me/deletion", accountHandler.DeletionStatus)
		}

		profiles := apiV1.Group("/profiles", authMW.VerifyToken())
		{
			profiles.GET("", profileHandler.ListProfiles)
			profiles.POST("", profileHandler.CreateProfile)
			profiles.POST("/migrate", profileHandler.Migrate)
			profiles.GET("/:profileId", profileHandler.GetProfile)
			profiles.PUT("/:profileId", profileHandler.SaveProfile)
			profiles.PATCH("/:profileId", profileHandler.RenameProfile)
			profiles.DELETE("/:profileId", profileHandler.DeleteProfile)
			profiles.POST("/:profileId/default", profileHandler.SetDefault)
			profiles.GET("/:profileId/summary", profileHandler.Summary)
			profiles.POST("/:profileId/semesters", profileHandler.AddSemester)
			profiles.DELETE("/:profileId/semesters/:semesterId", profileHandler.RemoveSemester)
			profiles.POST("/:profileId/semesters/:semesterId/subjects", profileHandler.UpsertSubject)
			profiles.DELETE("/:profileId/semesters/:semesterId/subjects/:subjectId", profileHandler.RemoveSubject)
		}

		streams := apiV1.Group("/stream", authMW.VerifyToken())
		{
			streams.GET("/profiles", streamHandler.Profiles)
			streams.GET("/profiles/:profileId", streamHandler.Profile)
			streams.GET("/shared-profiles", streamHandler.SharedProfiles)
			streams.GET("/collaborative-profiles/:profileId", streamHandler.CollaborativeProfile)
		}

		// Public share links can be opened without an account.
		apiV1.GET("/public/shared-profiles/:shareId", shareHandler.GetPublicShare)

		shared := apiV1.Group("/shared-profiles", authMW.VerifyToken())
		{
			shared.POST("", shareHandler.CreatePublicShare)
			shared.GET("", shareHandler.ListPublicShares)
			shared.DELETE("/:shareId", shareHandler.DeletePublicShare)
			shared.POST("/:shareId/copy", shareHandler.CopyPublicShare)
		}

		userShares := apiV1.Group("/user-shares", authMW.VerifyToken())
		{
			userShares.POST("", shareHandler.ShareWithUser)
			userShares.GET("/outgoing", shareHandler.ListOutgoing)
			userShares.PATCH("/outgoing/:shareId", shareHandler.UpdatePermission)
			userShares.DELETE("/outgoing/:shareId", shareHandler.Revoke)
			userShares.GET("/incoming", shareHandler.ListIncoming)
			userShares.GET("/incoming/:shareId", shareHandler.GetIncoming)
			userShares.PUT("/incoming/:shareId", shareHandler.UpdateIncoming)
			userShares.POST("/incoming/:shareId/copy", shareHandler.CopyIncoming)
		}

		collab := apiV1.Group("/collaborative-profiles", authMW.VerifyToken())
		{
			collab.POST("", collabHandler.Create)
			collab.GET("", collabHandler.List)
			collab.GET("/:profileId", collabHandler.Get)
			collab.PUT("/:profileId", collabHandler.UpdateSemesters)
			collab.DELETE("/:profileId", collabHandler.Delete)
			collab.POST("/:profileId/collaborators", collabHandler.AddCollaborator)
			collab.DELETE("/:profileId/collaborators/:userId", collabHandler.RemoveCollaborator)
			collab.POST("/:profileId/leave", collabHandler.Leave)
		}

		umsGroup := apiV1.Group("/ums", authMW.VerifyToken())
		{
			umsGroup.POST("/test", umsHandler.Test)
			umsGroup.POST("/import", umsHandler.Import)
		}

		calc := apiV1.Group("/calculators")
		{
			calc.POST("/gpa", calcHandler.GPA)
			calc.POST("/determinant", calcHandler.Determinant)
			calc.POST("/base", calcHandler.Base)
			calc.POST("/motion", calcHandler.Motion)
			calc.GET("/prime/:n", calcHandler.Prime)
		}
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "storeDriver": appConfig.StoreDriver})
	})
	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	logger.Info("API routes configured under /api/v1", zap.Bool("metrics", m != nil))
}
