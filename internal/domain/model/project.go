package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidProject is returned when project parameters fail validation.
var ErrInvalidProject = errors.New("invalid project")

// TrackerCredentials identify a project in the remote tracker.
type TrackerCredentials struct {
	ProjectID int64
	Token     string
}

// ChatSettings identify the chat room that receives new-burndown notices.
type ChatSettings struct {
	Subdomain string
	Token     string
	RoomID    string
}

// Complete reports whether every chat setting is present.
func (c ChatSettings) Complete() bool {
	return strings.TrimSpace(c.Subdomain) != "" &&
		strings.TrimSpace(c.Token) != "" &&
		strings.TrimSpace(c.RoomID) != ""
}

// Project is a tracked burndown: one remote tracker project whose iterations
// and daily metrics are imported into the local time series.
type Project struct {
	ID        int64
	Name      string
	Tracker   TrackerCredentials
	UTCOffset int // seconds east of UTC, refreshed on every import
	Chat      ChatSettings
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProjectRef names a project without carrying its credentials.
type ProjectRef struct {
	ID   int64
	Name string
}

// ProjectParams lists exactly the operator-editable fields of a Project.
type ProjectParams struct {
	Name    string
	Tracker TrackerCredentials
	Chat    ChatSettings
}

// Validate checks the parameters and returns an error wrapping ErrInvalidProject.
func (p ProjectParams) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidProject)
	}
	if p.Tracker.ProjectID <= 0 {
		return fmt.Errorf("%w: tracker project id must be positive", ErrInvalidProject)
	}
	if strings.TrimSpace(p.Tracker.Token) == "" {
		return fmt.Errorf("%w: tracker token is required", ErrInvalidProject)
	}
	return nil
}

// NewProject builds a Project from validated parameters. The UTC offset starts
// at zero and is owned by the importer.
func NewProject(params ProjectParams) (Project, error) {
	if err := params.Validate(); err != nil {
		return Project{}, err
	}

	return Project{
		Name:    strings.TrimSpace(params.Name),
		Tracker: params.Tracker,
		Chat:    trimChat(params.Chat),
	}, nil
}

// Apply replaces the editable fields of p with params.
func (p *Project) Apply(params ProjectParams) error {
	if err := params.Validate(); err != nil {
		return err
	}

	p.Name = strings.TrimSpace(params.Name)
	p.Tracker = params.Tracker
	p.Chat = trimChat(params.Chat)
	return nil
}

// NotificationEnabled reports whether new-iteration notices should be sent.
func (p Project) NotificationEnabled() bool {
	return p.Chat.Complete()
}

func trimChat(c ChatSettings) ChatSettings {
	return ChatSettings{
		Subdomain: strings.TrimSpace(c.Subdomain),
		Token:     strings.TrimSpace(c.Token),
		RoomID:    strings.TrimSpace(c.RoomID),
	}
}
