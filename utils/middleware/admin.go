package middleware

import (
	"encoding/json"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/coursehub-api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminAuditLog records an admin action after the handler ran.
// It must be mounted after RequireAdmin so the admin user is in context.
func AdminAuditLog(db *gorm.DB, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, ok := GetUser(c)
		if !ok {
			return c.Next() // Continue without logging if user not found
		}

		// Copy request data now: fiber reuses the context after the handler returns
		resourceID := c.Params("id")
		if resourceID == "" {
			resourceID = c.Params("transactionId")
		}
		var request datatypes.JSON
		if body := c.Body(); len(body) > 0 && json.Valid(body) {
			request = datatypes.JSON(append([]byte(nil), body...))
		}
		ip := c.IP()
		userAgent := c.Get("User-Agent")
		description := c.Method() + " " + c.Path()

		err := c.Next()

		entry := model.AdminAuditLog{
			AdminID:     admin.ID,
			Action:      action,
			Resource:    resource,
			ResourceID:  resourceID,
			Request:     request,
			StatusCode:  c.Response().StatusCode(),
			IPAddress:   ip,
			UserAgent:   userAgent,
			Description: description,
		}

		go func() {
			if dbErr := db.Create(&entry).Error; dbErr != nil {
				log.Printf("[AUDIT] Failed to record %s on %s: %v", action, resource, dbErr)
			}
		}()

		return err
	}
}
