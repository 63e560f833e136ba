package middlewares

import (
	"log"
	"os"
	"strconv"
	"strings"

	"pups/src/db"
	"pups/src/gate"
	"pups/src/models"
	"pups/src/types"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
)

var jwtKey = []byte(os.Getenv("JWT_SECRET"))

// AuthMiddleware verifies the bearer token and stores the caller's
// identity on the request context. How tokens are issued is outside the
// reservation core; this only establishes who is calling.
func AuthMiddleware(ctx *gin.Context) {
	bearerToken := ctx.Request.Header.Get("Authorization")
	if !strings.HasPrefix(bearerToken, "Bearer") {
		ctx.AbortWithStatus(401)
		return
	}
	reqToken := strings.Split(bearerToken, " ")[1]
	if reqToken == "" {
		ctx.AbortWithStatus(401)
		return
	}
	claims := &types.Claims{}
	tkn, err := jwt.ParseWithClaims(reqToken, claims, func(t *jwt.Token) (any, error) {
		return jwtKey, nil
	})
	if err != nil {
		log.Printf("token error: %s\n", err.Error())
		if err == jwt.ErrSignatureInvalid || err == jwt.ErrTokenMalformed {
			ctx.AbortWithStatus(401)
			return
		}
		ctx.AbortWithError(401, err)
		return
	}
	if !tkn.Valid {
		ctx.AbortWithStatus(401)
		return
	}

	db := db.GetDb()
	var user models.User
	uid, err := strconv.Atoi(claims.Subject)
	if err != nil {
		log.Println("error parsing claims:", err.Error())
		ctx.AbortWithStatus(401)
		return
	}
	db.Model(&models.User{}).Where(&models.User{ID: uint(uid)}).Find(&user)

	if uint(uid) != user.ID || user.ID < 1 {
		ctx.AbortWithStatus(401)
		return
	}
	ctx.Set("email", user.Email)
	ctx.Set("id", user.ID)
	ctx.Set("role", user.Role)
}

// GetPrincipal builds the explicit principal object the access gate
// consumes from the identity the auth middleware established.
func GetPrincipal(ctx *gin.Context) gate.Principal {
	return gate.Principal{
		UserID: ctx.GetUint("id"),
		Role:   types.Role(ctx.GetString("role")),
	}
}

// RequireAction aborts the request unless the gate allows the caller to
// perform action. Ownership-scoped actions are checked again deeper down
// against the actual resource owner. Gate rejections answer 401
// everywhere, matching the lifecycle error mapping.
func RequireAction(g gate.Gate, action gate.Action) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !g.Authorize(GetPrincipal(ctx), action, gate.Resource{}) {
			ctx.AbortWithStatus(401)
			return
		}
	}
}

func SecureHeaders(ctx *gin.Context) {
	ctx.Header("X-Frame-Options", "DENY")
	ctx.Header("X-Content-Type-Options", "nosniff")
	ctx.Header("Referrer-Policy", "strict-origin-when-cross-origin")
	ctx.Next()
}
