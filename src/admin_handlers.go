package main

import (
	"context"
	"errors"
	"net/http"

	"pups/src/gate"
	"pups/src/lib"
	"pups/src/middlewares"
	"pups/src/types"
	"pups/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func adminHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/listings", middlewares.RequireAction(accessGate, gate.ActionManageCatalog), func(ctx *gin.Context) {
			var body types.CreateListingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			id, err := utils.CreateNewListing(&body)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"data": gin.H{"id": id}})
		}).
		PUT("/listings/:id", middlewares.RequireAction(accessGate, gate.ActionManageCatalog), func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateListingRequestBody
			if err := ctx.ShouldBindJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if err := utils.UpdateListing(params.ID, &body); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusOK)
		}).
		PUT("/listings/:id/sold", middlewares.RequireAction(accessGate, gate.ActionMarkSold), func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			principal := middlewares.GetPrincipal(ctx)
			if err := lifecycleService.MarkSold(params.ID, principal); err != nil {
				rejectWith(ctx, err)
				return
			}
			ctx.Status(http.StatusOK)
		}).
		POST("/sweep", middlewares.RequireAction(accessGate, gate.ActionRunSweep), func(ctx *gin.Context) {
			report, err := expirySweeper.Run()
			if err != nil {
				ctx.JSON(http.StatusInternalServerError, gin.H{"error": "sweep scan failed"})
				return
			}
			if report.Expired > 0 {
				lib.DropCached(context.Background(), utils.CatalogCacheKey)
			}
			ctx.JSON(http.StatusOK, report)
		})
	return g
}
