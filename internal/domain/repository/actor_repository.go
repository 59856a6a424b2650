package repository

import (
	"context"

	"talentline/internal/domain/entity"
)

type ActorRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Actor, error)
	Upsert(ctx context.Context, actor *entity.Actor) error
}
