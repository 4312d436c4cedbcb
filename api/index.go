package api

import (
	"net/http"
	"sync"

	"postfolio/internal/app"
	"postfolio/internal/httpx"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
)

// Handler is the serverless entry point. The runtime is built on first use
// and reused across invocations.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		apiRuntime, initErr = app.Build(app.Options{LoadDotEnv: false})
	})

	if initErr != nil {
		httpx.WriteMessage(w, http.StatusInternalServerError, "application bootstrap failed")
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}
