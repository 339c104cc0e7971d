// Package api serves the todo list and the fact of the day over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/circleci/todo/facts"
	"github.com/circleci/todo/httpserver/ginrouter"
	"github.com/circleci/todo/todos"
)

type API struct {
	router *gin.Engine
	store  todos.Accessor
	facts  facts.Getter
}

type Options struct {
	Store todos.Accessor
	Facts facts.Getter
}

func New(ctx context.Context, opts Options) *API {
	r := ginrouter.Default(ctx, ginrouter.Options{Server: "api"})
	a := &API{
		router: r,
		store:  opts.Store,
		facts:  opts.Facts,
	}

	r.GET("/api/todos", a.listTodos)
	r.POST("/api/todos", a.createTodo)
	r.GET("/api/facts/random", a.randomFact)

	return a
}

func (a *API) Handler() http.Handler {
	return a.router
}
