package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/structures_backend/config"
	"bitbucket.org/mmdatafocus/structures_backend/models"
	"bitbucket.org/mmdatafocus/structures_backend/utils"
	"github.com/sirupsen/logrus"
)

// Scans every active tenant for deadlines entering their notice window or
// already overdue, and logs one structured line per finding. Intended to run
// as a scheduled job (Cloud Scheduler / cron).
func main() {
	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()

	withinDays := 30
	if v := os.Getenv("DEADLINE_SCAN_WITHIN_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			withinDays = n
		}
	}

	ctx := context.Background()
	businesses, err := models.ListBusinesses(ctx)
	if err != nil {
		logger.WithFields(logrus.Fields{"field": "deadline-scan"}).Fatal("list businesses: " + err.Error())
	}

	today := time.Now().UTC()
	var findings int
	for _, business := range businesses {
		bCtx := utils.SetBusinessIdInContext(ctx, business.ID.String())
		alerts, err := models.ListDueAlerts(bCtx, time.Duration(withinDays)*24*time.Hour)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field":       "deadline-scan",
				"business_id": business.ID.String(),
			}).Error("list due alerts: " + err.Error())
			continue
		}
		for _, alert := range alerts {
			status := alert.ComputeStatus(today)
			if status != models.AlertStatusDueSoon && status != models.AlertStatusOverdue {
				continue
			}
			findings++
			entry := logger.WithFields(logrus.Fields{
				"field":       "deadline-scan",
				"business_id": business.ID.String(),
				"alert_id":    alert.ID,
				"alert_name":  alert.Name,
				"status":      status,
			})
			if alert.NextDeadline != nil {
				entry = entry.WithField("next_deadline", alert.NextDeadline.Format(time.RFC3339))
			}
			if status == models.AlertStatusOverdue {
				entry.Warn("compliance deadline overdue")
			} else {
				entry.Info("compliance deadline due soon")
			}
		}
	}

	logger.WithFields(logrus.Fields{
		"field":       "deadline-scan",
		"businesses":  len(businesses),
		"findings":    findings,
		"within_days": withinDays,
	}).Info("deadline scan complete")
}
