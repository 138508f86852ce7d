package handlers

import (
	"strings"
	"time"

	"github.com/anjiri1684/exam_center/database"
	"github.com/anjiri1684/exam_center/services"
	"github.com/gofiber/fiber/v2"
)

// ListAuditLogs supports ?action=, ?entity_type=, ?entity_id=, ?actor= and
// ?since= (RFC3339).
func ListAuditLogs(c *fiber.Ctx) error {
	filter := services.AuditFilter{
		Action:     strings.ToUpper(c.Query("action")),
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
	}

	actor := c.Query("actor")
	actorID, err := parseOptionalUUID(&actor)
	if err != nil {
		return badRequest(c, "actor must be a UUID")
	}
	filter.Actor = actorID

	if since := c.Query("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return badRequest(c, "since must be an RFC3339 timestamp")
		}
		t = t.UTC()
		filter.Since = &t
	}

	p := resolvePaging(c, 50, 200)
	entries, total, err := services.ListAuditLogs(database.DB, filter, p.Page, p.PerPage)
	if err != nil {
		return respondError(c, err, "Failed to list audit logs")
	}
	return c.JSON(fiber.Map{"data": entries, "pagination": paginationMeta(p, total)})
}
