package middleware_test

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/textrelay/internal/http/middleware"
)

var _ = Describe("Recovery and Logger", func() {
	var (
		router *gin.Engine
		buf    *bytes.Buffer
	)

	BeforeEach(func() {
		gin.SetMode(gin.TestMode)
		buf = &bytes.Buffer{}
		slog.SetDefault(slog.New(slog.NewJSONHandler(buf, nil)))

		router = gin.New()
		router.Use(middleware.Recovery())
		router.Use(middleware.Logger())
		router.GET("/panic", func(*gin.Context) { panic("kaboom") })
		router.GET("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })
	})

	It("turns a handler panic into a 500", func() {
		w := httptest.NewRecorder()
		Expect(func() {
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/panic", nil))
		}).NotTo(Panic())

		Expect(w.Code).To(Equal(http.StatusInternalServerError))
		Expect(buf.String()).To(ContainSubstring("panic recovered in http handler"))
		Expect(buf.String()).To(ContainSubstring("kaboom"))
	})

	It("logs requests by route pattern", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items/42", nil))

		Expect(w.Code).To(Equal(http.StatusOK))
		Expect(buf.String()).To(ContainSubstring(`"route":"/items/:id"`))
		Expect(buf.String()).To(ContainSubstring(`"path":"/items/42"`))
		Expect(buf.String()).To(ContainSubstring(`"status":200`))
	})

	It("labels unmatched paths as unmatched", func() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

		Expect(w.Code).To(Equal(http.StatusNotFound))
		Expect(buf.String()).To(ContainSubstring(`"route":"unmatched"`))
	})
})
