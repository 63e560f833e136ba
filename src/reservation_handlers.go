package main

import (
	"context"
	"crypto/subtle"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"pups/src/config"
	"pups/src/gate"
	"pups/src/lib"
	"pups/src/middlewares"
	"pups/src/types"
	"pups/src/utils"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

func reservationHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/listings/:id/reserve", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.ReserveListingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			dueAt, err := time.Parse(config.TIME_PARSE_FORMAT, body.DepositDueAt)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			ledgerId, err := lifecycleService.Reserve(params.ID, userId, dueAt)
			if err != nil {
				rejectWith(ctx, err)
				return
			}
			lib.DropCached(context.Background(), utils.CatalogCacheKey)
			ctx.JSON(http.StatusCreated, gin.H{"data": gin.H{"reservation_id": ledgerId}})
		}).
		PUT("/listings/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			principal := middlewares.GetPrincipal(ctx)
			if err := lifecycleService.Cancel(params.ID, principal); err != nil {
				rejectWith(ctx, err)
				return
			}
			lib.DropCached(context.Background(), utils.CatalogCacheKey)
			ctx.Status(http.StatusOK)
		}).
		GET("/reservations", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			data, err := utils.GetOwnReservations(userId)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": data, "count": len(data)})
		}).
		GET("/reservations/:id", func(ctx *gin.Context) {
			id := ctx.Params.ByName("id")
			reservation, err := utils.GetReservation(id)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": "reservation not found"})
				return
			}
			principal := middlewares.GetPrincipal(ctx)
			if !accessGate.Authorize(principal, gate.ActionViewReservation, gate.Resource{OwnerID: reservation.UserID}) {
				ctx.Status(http.StatusUnauthorized)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": reservation})
		})
	return g
}

// webhookRoutes receives the external deposit-paid signal. No payment
// processing happens here; the provider is trusted via a shared secret and
// the lifecycle guards decide whether the signal still applies.
func webhookRoutes(router *gin.Engine) {
	router.POST("/webhooks/deposits/paid", func(ctx *gin.Context) {
		secret := os.Getenv("WEBHOOK_SECRET")
		given := ctx.GetHeader("x-webhook-secret")
		if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(given)) != 1 {
			ctx.Status(http.StatusUnauthorized)
			return
		}
		raw, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			ctx.Status(http.StatusBadRequest)
			return
		}
		body := string(raw)
		if !gjson.Valid(body) {
			log.Println("[webhook] Received invalid json body. Aborting")
			ctx.Status(http.StatusBadRequest)
			return
		}
		listingId := gjson.Get(body, "listing_id").Uint()
		reference := gjson.Get(body, "reference").String()
		if listingId == 0 || reference == "" {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "listing_id and reference are required"})
			return
		}
		if err := lifecycleService.MarkDepositPaid(uint(listingId), reference); err != nil {
			rejectWith(ctx, err)
			return
		}
		ctx.Status(http.StatusOK)
	})
}
