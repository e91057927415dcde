package services

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"storra-backend/models"
	"storra-backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const streamPollInterval = 2 * time.Second

// StreamTransactions pushes the authenticated user's new ledger entries as server-sent events.
func (s *LedgerService) StreamTransactions(c *fiber.Ctx) error {
	userID, _ := c.Locals("user_id").(string)
	profile, err := s.EnsureProfile(c.UserContext(), userID)
	if err != nil {
		return err
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	reqCtx := c.Context()
	reqCtx.SetBodyStreamWriter(func(w *bufio.Writer) {
		ticker := time.NewTicker(streamPollInterval)
		defer ticker.Stop()

		var cursor time.Time
		var latest models.RewardTransaction
		if err := s.DB.Where("profile_id = ?", profile.ID).
			Order("timestamp DESC").
			First(&latest).Error; err == nil {
			cursor = latest.Timestamp
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			utils.Logger.Warn("transaction stream init failed", zap.String("user_id", userID), zap.Error(err))
		}

		w.WriteString(":\n\n")
		if err := w.Flush(); err != nil {
			return
		}

		for {
			select {
			case <-ticker.C:
				var fresh []models.RewardTransaction
				if err := s.DB.Where("profile_id = ? AND timestamp > ?", profile.ID, cursor).
					Order("timestamp ASC").
					Find(&fresh).Error; err != nil {
					utils.Logger.Warn("transaction stream query failed", zap.String("user_id", userID), zap.Error(err))
					continue
				}

				if len(fresh) == 0 {
					// Heartbeat; a failed flush means the client left.
					w.WriteString(":\n\n")
				} else {
					cursor = fresh[len(fresh)-1].Timestamp
					for _, t := range fresh {
						payload, _ := json.Marshal(t)
						fmt.Fprintf(w, "event: transaction\ndata: %s\n\n", payload)
					}
				}
				if err := w.Flush(); err != nil {
					return
				}

			case <-reqCtx.Done():
				return
			}
		}
	})
	return nil
}
