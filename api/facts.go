package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *API) randomFact(c *gin.Context) {
	type response struct {
		Text string `json:"text"`
	}

	text, err := a.facts.RandomFact(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, response{Text: text})
}
