package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/models/reports"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
)

func main() {
	projectID := flag.Int("project-id", 0, "Required: project id")
	flag.Parse()

	if *projectID <= 0 {
		fmt.Fprintln(os.Stderr, "--project-id is required")
		os.Exit(1)
	}

	ctx := utils.WithCorrelationId(context.Background())
	ctx = utils.SetUsernameInContext(ctx, "ProjectFinalize")

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized")
		os.Exit(1)
	}

	project, err := models.FinalizeProject(ctx, *projectID)
	if err != nil {
		if utils.IsValidationError(err) || utils.IsNotFoundError(err) {
			fmt.Fprintf(os.Stderr, "cannot finalize project %d: %v\n", *projectID, err)
			os.Exit(2)
		}
		config.LogError(config.GetLogger(), "ProjectFinalize", "main", "finalize project", *projectID, err)
		fmt.Fprintf(os.Stderr, "finalize failed: %v\n", err)
		os.Exit(1)
	}
	if err := reports.InvalidateReportCache(); err != nil {
		config.LogError(config.GetLogger(), "ProjectFinalize", "main", "invalidate report cache", nil, err)
	}

	fmt.Printf("project %d (%s) finalized: %d posted tickets\n", project.ID, project.Name, project.PostedTicketCount)
}
