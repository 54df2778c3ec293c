package middleware

import (
	"github.com/gin-gonic/gin"
)

type RouteOpt struct {
	IsAuth bool
}

// Routes registers handlers with or without the auth middleware in front.
// The auth handler is injected once at wiring time.
type Routes struct {
	auth gin.HandlerFunc
}

func NewRoutes(auth gin.HandlerFunc) *Routes {
	return &Routes{auth: auth}
}

func (rt *Routes) GET(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.GET(path, rt.auth, handler)
	} else {
		r.GET(path, handler)
	}
}

func (rt *Routes) POST(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.POST(path, rt.auth, handler)
	} else {
		r.POST(path, handler)
	}
}

func (rt *Routes) PATCH(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.PATCH(path, rt.auth, handler)
	} else {
		r.PATCH(path, handler)
	}
}

func (rt *Routes) DELETE(r gin.IRoutes, path string, handler gin.HandlerFunc, opt RouteOpt) {
	if opt.IsAuth {
		r.DELETE(path, rt.auth, handler)
	} else {
		r.DELETE(path, handler)
	}
}
