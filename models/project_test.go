package models_test

import (
	"testing"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/models"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectLifecycle(t *testing.T) {
	db := openTestDB(t, true)
	ctx := testContext()
	clients := testClients()
	createHardware(t, ctx, "RK-1", "400", "250")

	project, err := models.CreateProject(ctx, clients, &models.NewProject{Name: " Office move ", ClientKey: "acme"})
	require.NoError(t, err)
	assert.Equal(t, "Office move", project.Name)
	assert.Equal(t, "Acme Corp", project.Client)
	assert.Equal(t, models.ProjectStatusOpen, project.Status)

	staged, err := models.AddProjectTicket(ctx, clients, project.ID, &models.NewTicket{
		ClientKey:       "initech",
		StartIso:        "2024-06-01T09:00:00Z",
		EntryType:       models.EntryTypeHardware,
		HardwareBarcode: utils.StringPtr("RK-1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "acme", staged.ClientKey, "project client wins")
	assert.False(t, staged.ProjectPosted)
	require.Len(t, ticketEvents(t, db, staged.ID), 1)

	visible, err := models.ListTickets(ctx, 50, 0)
	require.NoError(t, err)
	assert.Empty(t, visible, "staged tickets stay out of listings")

	pending, err := models.ListProjectTickets(ctx, project.ID, false)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	finalized, err := models.FinalizeProject(ctx, project.ID)
	require.NoError(t, err)
	assert.True(t, finalized.IsFinalized())
	assert.Equal(t, models.ProjectStatusFinalized, finalized.Status)
	assert.Equal(t, int64(1), finalized.PostedTicketCount)
	assert.Equal(t, int64(0), finalized.OpenTicketCount)

	visible, err = models.ListTickets(ctx, 50, 0)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, staged.ID, visible[0].ID)

	_, err = models.FinalizeProject(ctx, project.ID)
	assert.True(t, utils.IsValidationError(err), "second finalize: %v", err)

	open := models.ProjectStatusOpen
	_, err = models.UpdateProject(ctx, clients, project.ID, &models.ProjectUpdate{Status: &open})
	assert.True(t, utils.IsValidationError(err), "reopen: %v", err)

	_, err = models.AddProjectTicket(ctx, clients, project.ID, &models.NewTicket{StartIso: "2024-06-02T09:00:00Z"})
	assert.True(t, utils.IsValidationError(err), "add to finalized: %v", err)

	loose, err := models.CreateTicket(ctx, clients, &models.NewTicket{ClientKey: "acme", StartIso: "2024-06-03T09:00:00Z"})
	require.NoError(t, err)
	_, err = models.UpdateTicket(ctx, clients, loose.ID, &models.TicketUpdate{ProjectId: &project.ID})
	var ve *utils.ValidationError
	require.ErrorAs(t, err, &ve, "attach to finalized")
	assert.Equal(t, "project_id", ve.Field)

	_, err = models.CreateTicket(ctx, clients, &models.NewTicket{
		ClientKey: "acme", StartIso: "2024-06-03T10:00:00Z", ProjectId: &project.ID,
	})
	assert.True(t, utils.IsValidationError(err), "create in finalized: %v", err)

	// the posted ticket can still be edited in place
	_, err = models.UpdateTicket(ctx, clients, staged.ID, &models.TicketUpdate{ProjectId: &project.ID, Note: utils.StringPtr("checked")})
	assert.NoError(t, err)
}

func TestDeleteProject(t *testing.T) {
	db := openTestDB(t, true)
	ctx := testContext()
	clients := testClients()
	createHardware(t, ctx, "RK-2", "400", "250")

	project, err := models.CreateProject(ctx, clients, &models.NewProject{Name: "Rollout", ClientKey: "acme"})
	require.NoError(t, err)
	staged, err := models.AddProjectTicket(ctx, clients, project.ID, &models.NewTicket{
		StartIso:        "2024-06-01T09:00:00Z",
		EntryType:       models.EntryTypeHardware,
		HardwareBarcode: utils.StringPtr("RK-2"),
	})
	require.NoError(t, err)
	posted, err := models.CreateTicket(ctx, clients, &models.NewTicket{
		ClientKey:     "acme",
		StartIso:      "2024-06-01T09:00:00Z",
		ProjectId:     &project.ID,
		ProjectPosted: true,
	})
	require.NoError(t, err)

	_, err = models.DeleteProject(ctx, project.ID)
	require.NoError(t, err)

	_, err = models.GetTicket(ctx, staged.ID)
	assert.True(t, utils.IsNotFoundError(err))
	assert.Empty(t, ticketEvents(t, db, staged.ID))

	kept, err := models.GetTicket(ctx, posted.ID)
	require.NoError(t, err)
	assert.Nil(t, kept.ProjectId)

	_, err = models.GetProject(ctx, project.ID)
	assert.True(t, utils.IsNotFoundError(err))
}

func TestCreateProject_Rejects(t *testing.T) {
	openTestDB(t, true)
	ctx := testContext()

	_, err := models.CreateProject(ctx, testClients(), &models.NewProject{Name: "  ", ClientKey: "acme"})
	assert.True(t, utils.IsValidationError(err))
	_, err = models.CreateProject(ctx, testClients(), &models.NewProject{Name: "X", ClientKey: "nobody"})
	assert.True(t, utils.IsValidationError(err))

	projects, err := models.ListProjects(ctx, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, projects)
}
