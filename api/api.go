package api

import (
	"net/http"

	"github.com/danhollis/regpay"
	"github.com/danhollis/regpay/api/middleware"
	"github.com/danhollis/regpay/config"

	"github.com/gin-gonic/gin"
)

type Api struct {
	regpay *regpay.Regpay
	router *gin.Engine
}

func (a Api) Router() *gin.Engine {
	router := a.router
	router.POST("/registrations", a.CreateRegistration)
	router.POST("/registrations/verify", a.VerifyPayment)
	router.GET("/registrations/:correlation_id", a.GetRegistration)

	router.GET("/audit", a.AuditRegistrations)

	router.GET("/errors", a.GetUnresolvedErrors)
	router.PUT("/errors/:error_id/resolve", a.ResolveError)

	return a.router
}

func NewAPI(r *regpay.Regpay) *Api {
	gin.SetMode(gin.ReleaseMode)
	conf, err := config.Fetch()
	if err != nil {
		return nil
	}
	router := gin.Default()
	router.Use(middleware.RateLimitMiddleware(conf))
	if conf.Server.Secure {
		router.Use(middleware.SecretKeyAuthMiddleware())
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, "server running...")
	})

	return &Api{regpay: r, router: router}
}
