package main

import (
	"errors"
	"net/http"

	"pups/src/types"
	"pups/src/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func publicRoutes(router *gin.Engine) {
	router.
		GET("/puppies", func(ctx *gin.Context) {
			listings, err := utils.GetAvailableListings()
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": listings, "count": len(listings)})
		}).
		GET("/puppies/:slug", func(ctx *gin.Context) {
			var params types.SlugRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			listing, err := utils.GetListingBySlug(params.Slug)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					ctx.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
					return
				}
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": listing})
		})
}
