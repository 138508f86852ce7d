package handlers

import (
	"log"
	"strconv"
	"strings"

	"github.com/anjiri1684/exam_center/services"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// respondError writes service failures with their stable code and logs
// anything else as an internal error.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	if svcErr, ok := services.AsError(err); ok {
		return c.Status(svcErr.HTTPStatus()).JSON(fiber.Map{
			"error": svcErr.Message,
			"code":  svcErr.Code,
		})
	}
	log.Printf("🔥 %s: %v | Path: %s", fallback, err, c.Path())
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// parseOptionalUUID treats nil and blank strings as absent.
func parseOptionalUUID(s *string) (*uuid.UUID, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*s))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

type Paging struct {
	Page    int
	PerPage int
}

// resolvePaging reads ?page= and ?per_page= with a default and an upper bound.
func resolvePaging(c *fiber.Ctx, defaultPerPage, maxPerPage int) Paging {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	if page < 1 {
		page = 1
	}
	perPage, _ := strconv.Atoi(c.Query("per_page", strconv.Itoa(defaultPerPage)))
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	return Paging{Page: page, PerPage: perPage}
}

func paginationMeta(p Paging, total int64) fiber.Map {
	totalPages := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	if totalPages == 0 {
		totalPages = 1
	}
	return fiber.Map{
		"page":       p.Page,
		"perPage":    p.PerPage,
		"total":      total,
		"totalPages": totalPages,
		"hasNext":    p.Page < totalPages,
	}
}
