package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

func (a *API) listTodos(c *gin.Context) {
	ctx := c.Request.Context()

	list, err := a.store.List(ctx)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, list)
}

func (a *API) createTodo(c *gin.Context) {
	type request struct {
		Name string `json:"name" validate:"required"`
	}

	ctx := c.Request.Context()

	var req request
	err := c.ShouldBindJSON(&req)
	if err != nil {
		abortBadRequest(c, "invalid request body")
		return
	}

	err = validate.Struct(req)
	if err != nil {
		abortBadRequest(c, "name is required")
		return
	}

	todo, err := a.store.Create(ctx, req.Name)
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, todo)
}
