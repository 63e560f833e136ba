package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path"
	"regexp"
	"time"

	"pups/src/boot"
	"pups/src/common"
	"pups/src/config"
	"pups/src/gate"
	"pups/src/lifecycle"
	"pups/src/middlewares"
	"pups/src/store"
	"pups/src/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	apiPrefix string = "/api/v1"
)

var (
	accessGate       gate.Gate = gate.NewRoleGate()
	lifecycleService *lifecycle.Service
	expirySweeper    *common.Sweeper
)

var futureDateValidatorFunc validator.Func = func(fl validator.FieldLevel) bool {
	date, ok := fl.Field().Interface().(string)
	if !ok {
		return false
	}
	datetime, err := time.Parse(config.TIME_PARSE_FORMAT, date)
	if err != nil {
		return false
	}
	return datetime.After(time.Now())
}

// statusForLifecycleError maps typed rejections to transport statuses.
// Guard failures and stale writes are conflicts; everything else keeps its
// obvious code.
func statusForLifecycleError(err error) int {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, lifecycle.ErrNotAvailable),
		errors.Is(err, lifecycle.ErrNotPending),
		errors.Is(err, lifecycle.ErrDeadlineNotReached),
		errors.Is(err, lifecycle.ErrReferenceMismatch),
		errors.Is(err, lifecycle.ErrVersionConflict):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// reasonForLifecycleError is the stable reason code carried by every
// rejection; clients map it to a human message.
func reasonForLifecycleError(err error) string {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		return "not_found"
	case errors.Is(err, lifecycle.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, lifecycle.ErrNotAvailable):
		return "not_available"
	case errors.Is(err, lifecycle.ErrNotPending):
		return "not_pending"
	case errors.Is(err, lifecycle.ErrDeadlineNotReached):
		return "deadline_not_reached"
	case errors.Is(err, lifecycle.ErrReferenceMismatch):
		return "reference_mismatch"
	case errors.Is(err, lifecycle.ErrVersionConflict):
		return "conflict"
	}
	return "internal"
}

func rejectWith(ctx *gin.Context, err error) {
	ctx.JSON(statusForLifecycleError(err), gin.H{
		"error":  err.Error(),
		"reason": reasonForLifecycleError(err),
	})
}

func setupRouter() *gin.Engine {
	router := gin.Default()
	router.Use(middlewares.SecureHeaders)
	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func main() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == "local" {
		cwd, _ := os.Getwd()
		if err := godotenv.Load(path.Join(cwd, ".env")); err != nil {
			panic(err)
		}
	}

	if utils.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	gdb := boot.InitDb()
	lifecycleService = lifecycle.NewService(store.New(gdb), accessGate, lifecycle.NewSystemClock())
	expirySweeper = common.NewSweeper(lifecycleService)
	boot.InitSweep(expirySweeper, config.GetSweepInterval())

	router := setupRouter()

	appHost := os.Getenv("APP_HOST")
	if apiEnv == "local" {
		router.Use(cors.Default())
	} else {
		cc := cors.DefaultConfig()
		cc.AllowMethods = append(cc.AllowMethods, "GET", "POST", "PUT", "DELETE", "HEAD")
		cc.AllowHeaders = append(cc.AllowHeaders, "Origin", "Authorization")
		cc.AllowOriginFunc = func(origin string) bool {
			match, _ := regexp.MatchString(appHost, origin)
			return match
		}
		cc.AllowCredentials = true
		cc.AllowAllOrigins = false
		router.Use(cors.New(cc))
	}

	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterValidation("futuredate", futureDateValidatorFunc)
	}

	publicRoutes(router)
	webhookRoutes(router)

	authorized := router.Group(apiPrefix)
	authorized.Use(middlewares.AuthMiddleware)
	{
		authorized = reservationHandlers(authorized)
	}

	admin := router.Group(path.Join(apiPrefix, "admin"))
	admin.Use(middlewares.AuthMiddleware)
	{
		adminHandlers(admin)
	}

	if err := router.Run(":9090"); err != nil {
		log.Fatalf("Failed to start server: %s\n", err.Error())
	}
}
