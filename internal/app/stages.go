package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/ovstage/stagehub/internal/domain"
	"github.com/ovstage/stagehub/internal/store"
)

// StagePatch is a partial stage update. A non-nil empty Password clears the
// protection; Admins must keep at least one entry.
type StagePatch struct {
	Name      *string           `json:"name,omitempty"`
	Password  *string           `json:"password,omitempty"`
	Acoustics *domain.Acoustics `json:"acoustics,omitempty"`
	Admins    *[]domain.UserID  `json:"admins,omitempty"`
}

// GroupPatch is a partial group update.
type GroupPatch struct {
	Name     *string          `json:"name,omitempty"`
	Volume   *float64         `json:"volume,omitempty"`
	Muted    *bool            `json:"muted,omitempty"`
	Position *domain.Position `json:"position,omitempty"`
}

// CreateStage creates a stage with the creator as first admin and announces
// it to every admin.
func (e *Engine) CreateStage(ctx context.Context, creator domain.UserID, name, password string) (*domain.Stage, error) {
	stage, err := domain.NewStage(name, creator)
	if err != nil {
		return nil, err
	}
	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("create stage: hash password: %w", err)
		}
		stage.PasswordHash = hash
	}
	if err := e.store.Stages.Create(ctx, *stage); err != nil {
		return nil, fmt.Errorf("create stage: %w", err)
	}
	for _, admin := range stage.Admins {
		e.notify(ctx, ToUser{UserID: admin}, StageAdded, stage.Sanitized())
	}
	log.Info().Str("module", "app.stages").Str("stage", string(stage.ID)).Str("creator", string(creator)).Msg("stage created")
	return stage, nil
}

// UpdateStage applies an admin-only patch and broadcasts the change to
// everyone associated with the stage.
func (e *Engine) UpdateStage(ctx context.Context, requester domain.UserID, stageID domain.StageID, patch StagePatch) (*domain.Stage, error) {
	stage, err := e.store.Stages.Get(ctx, string(stageID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update stage: load: %w", err)
	}
	if !stage.IsAdmin(requester) {
		return nil, ErrUnauthorized
	}
	if patch.Admins != nil && len(*patch.Admins) == 0 {
		return nil, domain.ErrStageNoAdmin
	}

	var hash []byte
	if patch.Password != nil && *patch.Password != "" {
		hash, err = bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("update stage: hash password: %w", err)
		}
	}

	updated, err := e.store.Stages.Update(ctx, string(stageID), func(s *domain.Stage) {
		if patch.Name != nil {
			s.Name = *patch.Name
		}
		if patch.Password != nil {
			s.PasswordHash = hash
		}
		if patch.Acoustics != nil {
			s.Acoustics = *patch.Acoustics
		}
		if patch.Admins != nil {
			s.Admins = *patch.Admins
		}
	})
	if err != nil {
		return nil, fmt.Errorf("update stage: %w", err)
	}
	e.notify(ctx, ToStage{StageID: stageID}, StageChanged, updated.Sanitized())
	return &updated, nil
}

// RemoveStage is the admin entry point to the stage cascade.
func (e *Engine) RemoveStage(ctx context.Context, requester domain.UserID, stageID domain.StageID) error {
	stage, err := e.store.Stages.Get(ctx, string(stageID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("remove stage: load: %w", err)
	}
	if !stage.IsAdmin(requester) {
		return ErrUnauthorized
	}
	return e.DeleteStage(ctx, stageID)
}

// CreateGroup adds a group to a stage, admin-only.
func (e *Engine) CreateGroup(ctx context.Context, requester domain.UserID, stageID domain.StageID, name string) (*domain.Group, error) {
	stage, err := e.store.Stages.Get(ctx, string(stageID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("create group: load stage: %w", err)
	}
	if !stage.IsAdmin(requester) {
		return nil, ErrUnauthorized
	}
	group := domain.NewGroup(stageID, name)
	if err := e.store.Groups.Create(ctx, *group); err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	e.notify(ctx, ToStage{StageID: stageID}, GroupAdded, *group)
	return group, nil
}

// UpdateGroup applies an admin-only patch and broadcasts it.
func (e *Engine) UpdateGroup(ctx context.Context, requester domain.UserID, groupID domain.GroupID, patch GroupPatch) (*domain.Group, error) {
	group, err := e.store.Groups.Get(ctx, string(groupID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update group: load: %w", err)
	}
	stage, err := e.store.Stages.Get(ctx, string(group.StageID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update group: load stage: %w", err)
	}
	if !stage.IsAdmin(requester) {
		return nil, ErrUnauthorized
	}

	updated, err := e.store.Groups.Update(ctx, string(groupID), func(g *domain.Group) {
		if patch.Name != nil {
			g.Name = *patch.Name
		}
		if patch.Volume != nil {
			g.Volume = *patch.Volume
		}
		if patch.Muted != nil {
			g.Muted = *patch.Muted
		}
		if patch.Position != nil {
			g.Position = *patch.Position
		}
	})
	if err != nil {
		return nil, fmt.Errorf("update group: %w", err)
	}
	e.notify(ctx, ToStage{StageID: group.StageID}, GroupChanged, updated)
	return &updated, nil
}

// RemoveGroup is the admin entry point to the group cascade.
func (e *Engine) RemoveGroup(ctx context.Context, requester domain.UserID, groupID domain.GroupID) error {
	group, err := e.store.Groups.Get(ctx, string(groupID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("remove group: load: %w", err)
	}
	stage, err := e.store.Stages.Get(ctx, string(group.StageID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("remove group: load stage: %w", err)
	}
	if !stage.IsAdmin(requester) {
		return ErrUnauthorized
	}
	return e.DeleteGroup(ctx, groupID)
}
