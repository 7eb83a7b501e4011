package api

import (
	"net/http"
	"net/http/pprof"

	"github.com/julienschmidt/httprouter"
)

func registerProfileHandlers(mux *httprouter.Router) {
	mux.Handler(http.MethodGet, "/debug/pprof/allocs", pprof.Handler("allocs"))
	mux.Handler(http.MethodGet, "/debug/pprof/block", pprof.Handler("block"))
	mux.Handler(http.MethodGet, "/debug/pprof/goroutine", pprof.Handler("goroutine"))
	mux.Handler(http.MethodGet, "/debug/pprof/heap", pprof.Handler("heap"))
	mux.Handler(http.MethodGet, "/debug/pprof/mutex", pprof.Handler("mutex"))
	mux.Handler(http.MethodGet, "/debug/pprof/threadcreate", pprof.Handler("threadcreate"))
	mux.HandlerFunc(http.MethodGet, "/debug/pprof/", pprof.Index)
	mux.HandlerFunc(http.MethodGet, "/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandlerFunc(http.MethodGet, "/debug/pprof/profile", pprof.Profile)
	mux.HandlerFunc(http.MethodGet, "/debug/pprof/symbol", pprof.Symbol)
	mux.HandlerFunc(http.MethodGet, "/debug/pprof/trace", pprof.Trace)
}
