package repository

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"talentline/internal/domain/entity"
	"talentline/internal/domain/repository"
	"talentline/pkg/errors"
)

type firestoreActorRepository struct {
	client *firestore.Client
}

func NewFirestoreActorRepository(client *firestore.Client) repository.ActorRepository {
	return &firestoreActorRepository{
		client: client,
	}
}

func (r *firestoreActorRepository) GetByID(ctx context.Context, id string) (*entity.Actor, error) {
	doc, err := r.client.Collection("actors").Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, errors.NotFound("Actor", nil)
		}
		return nil, errors.Internal("Failed to get actor", err)
	}

	var actor entity.Actor
	if err := doc.DataTo(&actor); err != nil {
		return nil, errors.Internal("Failed to parse actor data", err)
	}
	actor.ID = doc.Ref.ID

	return &actor, nil
}

func (r *firestoreActorRepository) Upsert(ctx context.Context, actor *entity.Actor) error {
	now := time.Now()
	if actor.CreatedAt.IsZero() {
		actor.CreatedAt = now
	}
	actor.UpdatedAt = now

	_, err := r.client.Collection("actors").Doc(actor.ID).Set(ctx, actor)
	if err != nil {
		return errors.Internal("Failed to upsert actor", err)
	}

	return nil
}
