package auth

import (
	"github.com/gin-gonic/gin"

	"cardassist/pkg/errors"
)

const claimsKey = "auth_claims"

// RequireBearer rejects requests without a valid Authorization bearer token
// and stores the claims on the gin context.
func RequireBearer(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := v.Verify(c.GetHeader("Authorization"))
		if err != nil {
			c.AbortWithStatusJSON(errors.ToHTTPStatus(err), errors.ToErrorResponse(err))
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
