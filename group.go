package warden

import (
	"net/http"
	"path"
	"strings"
)

// Group defines a route group with a common prefix and middleware, typically
// an authenticator and a guard shared by a set of routes.
type Group struct {
	app        *App
	prefix     string
	middleware []Middleware
}

// Group creates a new route group.
func (a *App) Group(prefix string, middleware ...Middleware) *Group {
	return &Group{app: a, prefix: path.Join("/", prefix), middleware: middleware}
}

// Group creates a nested group.
func (g *Group) Group(prefix string, middleware ...Middleware) *Group {
	return &Group{app: g.app, prefix: joinPaths(g.prefix, prefix), middleware: g.with(middleware)}
}

// Use appends middleware to the group.
func (g *Group) Use(middleware ...Middleware) {
	g.middleware = append(g.middleware, middleware...)
}

// GET registers a GET route in the group.
func (g *Group) GET(route string, handler Handler, middleware ...Middleware) {
	g.Handle(http.MethodGet, route, handler, middleware...)
}

// POST registers a POST route in the group.
func (g *Group) POST(route string, handler Handler, middleware ...Middleware) {
	g.Handle(http.MethodPost, route, handler, middleware...)
}

// PUT registers a PUT route in the group.
func (g *Group) PUT(route string, handler Handler, middleware ...Middleware) {
	g.Handle(http.MethodPut, route, handler, middleware...)
}

// PATCH registers a PATCH route in the group.
func (g *Group) PATCH(route string, handler Handler, middleware ...Middleware) {
	g.Handle(http.MethodPatch, route, handler, middleware...)
}

// DELETE registers a DELETE route in the group.
func (g *Group) DELETE(route string, handler Handler, middleware ...Middleware) {
	g.Handle(http.MethodDelete, route, handler, middleware...)
}

// Handle registers a route in the group for an arbitrary method.
func (g *Group) Handle(method, route string, handler Handler, middleware ...Middleware) {
	g.app.Handle(method, joinPaths(g.prefix, route), handler, g.with(middleware)...)
}

func (g *Group) with(middleware []Middleware) []Middleware {
	combined := append([]Middleware{}, g.middleware...)
	return append(combined, middleware...)
}

// joinPaths joins a group prefix and a route path. A trailing slash on the
// route survives so "/assets/" still registers a ServeMux subtree.
func joinPaths(prefix, route string) string {
	joined := path.Join("/", prefix, route)
	if strings.HasSuffix(route, "/") && joined != "/" {
		joined += "/"
	}
	return joined
}
