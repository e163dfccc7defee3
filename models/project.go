package models

import (
	"context"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/ticketbooks_backend/config"
	"bitbucket.org/mmdatafocus/ticketbooks_backend/utils"
	"gorm.io/gorm"
)

// Project groups staged tickets for one client. Staged tickets stay out of
// the normal listings until the project is finalized.
type Project struct {
	ID          int           `gorm:"primary_key" json:"id"`
	Name        string        `gorm:"size:255;not null" json:"name"`
	ClientKey   string        `gorm:"size:128;index;not null" json:"client_key"`
	Client      string        `gorm:"size:255;not null" json:"client"`
	Status      ProjectStatus `gorm:"size:32;not null;default:open" json:"status"`
	Note        *string       `gorm:"type:text" json:"note"`
	StartDate   *string       `gorm:"size:40" json:"start_date"`
	EndDate     *string       `gorm:"size:40" json:"end_date"`
	FinalizedAt *time.Time    `json:"finalized_at"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updated_at"`

	OpenTicketCount   int64 `gorm:"-" json:"open_ticket_count"`
	PostedTicketCount int64 `gorm:"-" json:"posted_ticket_count"`
	TicketCount       int64 `gorm:"-" json:"ticket_count"`
}

func (Project) TableName() string {
	return "projects"
}

func (p *Project) IsFinalized() bool {
	return p.FinalizedAt != nil
}

type NewProject struct {
	Name      string         `json:"name" validate:"required"`
	ClientKey string         `json:"client_key" validate:"required"`
	Status    *ProjectStatus `json:"status"`
	Note      *string        `json:"note"`
	StartDate *string        `json:"start_date"`
	EndDate   *string        `json:"end_date"`
}

type ProjectUpdate struct {
	Name      *string        `json:"name"`
	ClientKey *string        `json:"client_key"`
	Status    *ProjectStatus `json:"status"`
	Note      *string        `json:"note"`
	StartDate *string        `json:"start_date"`
	EndDate   *string        `json:"end_date"`
}

func resolveProjectClient(clients ClientDirectory, key string) (string, string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", utils.NewValidationError("client_key", "is required")
	}
	if clients == nil {
		clients = ClientTable{}
	}
	name, ok := clients.ResolveName(key)
	if !ok || name == "" {
		return "", "", utils.NewValidationError("client_key", "unknown client %q", key)
	}
	return key, name, nil
}

func CreateProject(ctx context.Context, clients ClientDirectory, input *NewProject) (*Project, error) {
	input.Name = strings.TrimSpace(input.Name)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	key, name, err := resolveProjectClient(clients, input.ClientKey)
	if err != nil {
		return nil, err
	}
	project := Project{
		Name:      input.Name,
		ClientKey: key,
		Client:    name,
		Status:    ProjectStatusOpen,
		Note:      utils.TrimToNil(input.Note),
		StartDate: utils.TrimToNil(input.StartDate),
		EndDate:   utils.TrimToNil(input.EndDate),
	}
	if input.Status != nil && strings.TrimSpace(string(*input.Status)) != "" {
		project.Status = ProjectStatus(strings.TrimSpace(string(*input.Status)))
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&project).Error; err != nil {
		return nil, err
	}
	return &project, nil
}

func UpdateProject(ctx context.Context, clients ClientDirectory, id int, input *ProjectUpdate) (*Project, error) {
	var project *Project
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = utils.FetchModelTx[Project](tx, "project", id)
		if err != nil {
			return err
		}
		if input.Name != nil {
			name := strings.TrimSpace(*input.Name)
			if name == "" {
				return utils.NewValidationError("name", "is required")
			}
			project.Name = name
		}
		if input.ClientKey != nil {
			key, name, err := resolveProjectClient(clients, *input.ClientKey)
			if err != nil {
				return err
			}
			project.ClientKey = key
			project.Client = name
		}
		if input.Status != nil {
			status := ProjectStatus(strings.TrimSpace(string(*input.Status)))
			if project.IsFinalized() && status != ProjectStatusFinalized {
				return utils.NewValidationError("status", "a finalized project cannot be reopened")
			}
			if status != "" {
				project.Status = status
			}
		}
		if input.Note != nil {
			project.Note = utils.TrimToNil(input.Note)
		}
		if input.StartDate != nil {
			project.StartDate = utils.TrimToNil(input.StartDate)
		}
		if input.EndDate != nil {
			project.EndDate = utils.TrimToNil(input.EndDate)
		}
		return tx.Save(project).Error
	})
	if err != nil {
		return nil, err
	}
	return project, nil
}

// DeleteProject deletes staged tickets through the ticket engine so their
// ledger events go with them. Posted tickets stay in history, detached.
func DeleteProject(ctx context.Context, id int) (*Project, error) {
	var project *Project
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = utils.FetchModelTx[Project](tx, "project", id)
		if err != nil {
			return err
		}
		var stagedIds []int
		err = tx.Model(&Ticket{}).
			Where("project_id = ? AND project_posted = ?", id, false).
			Pluck("id", &stagedIds).Error
		if err != nil {
			return err
		}
		for _, ticketId := range stagedIds {
			if _, err := deleteTicketTx(tx, ticketId); err != nil {
				return err
			}
		}
		err = tx.Model(&Ticket{}).
			Where("project_id = ?", id).
			Update("project_id", nil).Error
		if err != nil {
			return err
		}
		return tx.Delete(project).Error
	})
	if err != nil {
		return nil, err
	}
	clearRedis(*project, "DeleteProject")
	return project, nil
}

// FinalizeProject posts every staged ticket. It is a one-way transition.
func FinalizeProject(ctx context.Context, id int) (*Project, error) {
	var project *Project
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		project, err = utils.FetchModelTx[Project](tx, "project", id)
		if err != nil {
			return err
		}
		if project.IsFinalized() {
			return utils.NewValidationError("project", "project %d is already finalized", id)
		}
		err = tx.Model(&Ticket{}).
			Where("project_id = ? AND project_posted = ?", id, false).
			Update("project_posted", true).Error
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		project.FinalizedAt = &now
		if project.Status == "" || project.Status == ProjectStatusOpen {
			project.Status = ProjectStatusFinalized
		}
		return tx.Save(project).Error
	})
	if err != nil {
		return nil, err
	}
	if err := countProjectTickets(config.GetDB().WithContext(ctx), []*Project{project}); err != nil {
		return nil, err
	}
	return project, nil
}

// AddProjectTicket creates a staged ticket bound to the project's client.
func AddProjectTicket(ctx context.Context, clients ClientDirectory, projectId int, input *NewTicket) (*Ticket, error) {
	var ticket *Ticket
	db := config.GetDB()
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		project, err := utils.FetchModelTx[Project](tx, "project", projectId)
		if err != nil {
			return err
		}
		if project.IsFinalized() {
			return utils.NewValidationError("project", "project %d is already finalized", projectId)
		}
		staged := *input
		staged.ClientKey = project.ClientKey
		staged.ProjectId = &project.ID
		staged.ProjectPosted = false
		ticket, err = createTicketTx(ctx, tx, clients, &staged)
		return err
	})
	if err != nil {
		return nil, err
	}
	clearRedis(*ticket, "AddProjectTicket")
	return ticket, nil
}

func GetProject(ctx context.Context, id int) (*Project, error) {
	project, err := utils.FetchModel[Project](ctx, "project", id)
	if err != nil {
		return nil, err
	}
	if err := countProjectTickets(config.GetDB().WithContext(ctx), []*Project{project}); err != nil {
		return nil, err
	}
	return project, nil
}

func ListProjects(ctx context.Context, limit int, offset int) ([]*Project, error) {
	db := config.GetDB().WithContext(ctx)
	var results []*Project
	err := db.Scopes(paginate(limit, offset)).
		Order("created_at DESC").Order("id DESC").
		Find(&results).Error
	if err != nil {
		return nil, err
	}
	if err := countProjectTickets(db, results); err != nil {
		return nil, err
	}
	return results, nil
}

type projectTicketCount struct {
	ProjectId     int
	ProjectPosted bool
	Count         int64
}

func countProjectTickets(tx *gorm.DB, projects []*Project) error {
	if len(projects) == 0 {
		return nil
	}
	ids := make([]int, 0, len(projects))
	byId := make(map[int]*Project, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
		byId[p.ID] = p
		p.OpenTicketCount, p.PostedTicketCount, p.TicketCount = 0, 0, 0
	}
	var rows []projectTicketCount
	err := tx.Model(&Ticket{}).
		Select("project_id, project_posted, COUNT(*) AS count").
		Where("project_id IN ?", ids).
		Group("project_id, project_posted").
		Scan(&rows).Error
	if err != nil {
		return err
	}
	for _, row := range rows {
		p := byId[row.ProjectId]
		if p == nil {
			continue
		}
		if row.ProjectPosted {
			p.PostedTicketCount += row.Count
		} else {
			p.OpenTicketCount += row.Count
		}
		p.TicketCount += row.Count
	}
	return nil
}
