package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/tour-booking/internal/handler"    // import the handlers that implement business logic
	"github.com/iliyamo/tour-booking/internal/middleware" // import middleware for authentication and role enforcement
	"github.com/iliyamo/tour-booking/internal/model"
)

// Deps bundles everything route registration needs: the handlers plus the
// cross-cutting middleware built once in main.
type Deps struct {
	Health  *handler.HealthHandler
	Auth    *handler.AuthHandler
	Users   *handler.UserHandler
	Tours   *handler.TourHandler
	Reviews *handler.ReviewHandler

	Protect     echo.MiddlewareFunc // rejects requests without a valid session
	CurrentUser echo.MiddlewareFunc // resolves the session if present, never rejects
	RateLimit   echo.MiddlewareFunc // distributed token bucket over Redis
	Cache       echo.MiddlewareFunc // Redis response cache for public GETs
}

// Register wires every route of the API onto the provided Echo instance.
// The whole /api surface sits behind the rate limiter; public browse routes
// additionally resolve the current user so limiter keys and logs can see who
// is asking.
func Register(e *echo.Echo, d Deps) {
	// Health check endpoint for load balancers and monitoring systems.  It
	// lives outside /api so it is never rate limited or cached.
	e.GET("/healthz", d.Health.Health)

	api := e.Group("/api", d.RateLimit)

	registerTours(api, d)
	registerUsers(api, d)
	registerReviews(api, d)
}

// registerTours registers the tour CRUD, its aggregation endpoints and the
// reviews nested below a tour.
func registerTours(api *echo.Group, d Deps) {
	g := api.Group("/v1/tours")

	// Public browse endpoints.  The current user is resolved when a session
	// is present; responses are served from the Redis cache when warm.
	g.GET("", d.Tours.GetAllTours(), d.CurrentUser, d.Cache)
	g.GET("/top-5-cheap", d.Tours.GetAllTours(), handler.AliasTopTours, d.CurrentUser, d.Cache)
	g.GET("/tour-stats", d.Tours.GetTourStats, d.CurrentUser, d.Cache)
	g.GET("/tours-within/:distance/center/:latlng/unit/:unit", d.Tours.GetToursWithin, d.CurrentUser)
	g.GET("/distances/:latlng/unit/:unit", d.Tours.GetDistances, d.CurrentUser)
	g.GET("/:id", d.Tours.GetTour, d.CurrentUser, d.Cache)

	// The monthly plan is internal planning data: any authenticated staff
	// role may read it, plain users may not.
	g.GET("/monthly-plan/:year", d.Tours.GetMonthlyPlan, d.Protect,
		middleware.RequireRole(model.RoleAdmin, model.RoleLeadGuide, model.RoleGuide))

	// Writes are restricted to the roles that curate the catalog.
	curators := middleware.RequireRole(model.RoleAdmin, model.RoleLeadGuide)
	g.POST("", d.Tours.CreateTour(), d.Protect, curators)
	g.PATCH("/:id", d.Tours.UpdateTour(), d.Protect, curators)
	g.DELETE("/:id", d.Tours.DeleteTour(), d.Protect, curators)

	// Reviews nested below a tour: the tour id comes from the route, the
	// author from the session.  All nested review routes require a login.
	nested := g.Group("/:tourId/reviews", d.Protect)
	nested.GET("", d.Reviews.GetAllReviews())
	nested.POST("", d.Reviews.CreateReview, middleware.RequireRole(model.RoleUser))
}

// registerUsers registers signup/login, the password lifecycle, the
// self-service /me routes and the admin-only user CRUD.
func registerUsers(api *echo.Group, d Deps) {
	g := api.Group("/v1/users")

	// Operations that do not require an existing session.
	g.POST("/signup", d.Auth.Signup)
	g.POST("/login", d.Auth.Login)
	g.GET("/logout", d.Auth.Logout)
	g.POST("/forgotPassword", d.Auth.ForgotPassword)
	g.PATCH("/resetPassword/:token", d.Auth.ResetPassword)

	// Everything below requires a valid session.
	me := g.Group("", d.Protect)
	me.PATCH("/updateMyPassword", d.Auth.UpdatePassword)
	me.GET("/me", d.Users.GetMe)
	me.PATCH("/updateMe", d.Users.UpdateMe)
	me.DELETE("/deleteMe", d.Users.DeleteMe)

	// Account administration is reserved for admins.  Create is registered
	// only to explain itself away; accounts come into being through signup.
	admin := g.Group("", d.Protect, middleware.RequireRole(model.RoleAdmin))
	admin.GET("", d.Users.GetAllUsers())
	admin.POST("", d.Users.CreateUser)
	admin.GET("/:id", d.Users.GetUser())
	admin.PATCH("/:id", d.Users.UpdateUser())
	admin.DELETE("/:id", d.Users.DeleteUser())
}

// registerReviews registers the top-level review routes.  Every review route
// requires a login; writes are limited to the review's natural owners: plain
// users create, users and admins modify.
func registerReviews(api *echo.Group, d Deps) {
	g := api.Group("/v1/reviews", d.Protect)

	g.GET("", d.Reviews.GetAllReviews())
	g.POST("", d.Reviews.CreateReview, middleware.RequireRole(model.RoleUser))
	g.GET("/:id", d.Reviews.GetReview())
	g.PATCH("/:id", d.Reviews.UpdateReview(), middleware.RequireRole(model.RoleUser, model.RoleAdmin))
	g.DELETE("/:id", d.Reviews.DeleteReview(), middleware.RequireRole(model.RoleUser, model.RoleAdmin))
}
