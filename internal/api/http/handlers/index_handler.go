package handlers

import (
	"sort"

	"github.com/gofiber/fiber/v2"
)

// IndexHandler describes the API to humans.
type IndexHandler struct {
	serviceName string
	version     string
	prefix      string
}

// NewIndexHandler constructs handler.
func NewIndexHandler(serviceName, version, prefix string) *IndexHandler {
	return &IndexHandler{serviceName: serviceName, version: version, prefix: prefix}
}

// Index handles GET /.
func (h *IndexHandler) Index(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": h.serviceName,
		"version": h.version,
		"links": fiber.Map{
			"docs":   "/docs",
			"health": "/health/live",
			"auth":   h.prefix + "/auth",
			"users":  h.prefix + "/users",
		},
	})
}

type endpoint struct {
	Method string `json:"method"`
	Path   string `json:"path"`
}

// Docs handles GET /docs by listing every registered route.
func (h *IndexHandler) Docs(c *fiber.Ctx) error {
	routes := c.App().GetRoutes(true)
	endpoints := make([]endpoint, 0, len(routes))
	for _, r := range routes {
		if r.Method == fiber.MethodHead {
			continue
		}
		endpoints = append(endpoints, endpoint{Method: r.Method, Path: r.Path})
	}
	sort.Slice(endpoints, func(i, j int) bool {
		if endpoints[i].Path != endpoints[j].Path {
			return endpoints[i].Path < endpoints[j].Path
		}
		return endpoints[i].Method < endpoints[j].Method
	})

	return c.JSON(fiber.Map{"data": fiber.Map{"endpoints": endpoints}})
}
