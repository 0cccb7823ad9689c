package handler

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// queryList reads a comma separated query parameter, also accepting repeated keys.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, raw := range c.QueryArray(key) {
		for _, part := range strings.Split(raw, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
