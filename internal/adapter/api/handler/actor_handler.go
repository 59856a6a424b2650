package handler

import (
	"github.com/labstack/echo/v4"

	"talentline/internal/domain/entity"
	"talentline/internal/domain/repository"
	"talentline/internal/infrastructure/firebase"
	"talentline/pkg/errors"
	"talentline/pkg/response"
)

// ActorHandler maintains the actor directory the chat layer denormalizes
// display data from.
type ActorHandler struct {
	actorRepo  repository.ActorRepository
	authClient *firebase.FirebaseAuthClient
}

func NewActorHandler(actorRepo repository.ActorRepository, authClient *firebase.FirebaseAuthClient) *ActorHandler {
	return &ActorHandler{
		actorRepo:  actorRepo,
		authClient: authClient,
	}
}

type upsertActorRequest struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url" validate:"omitempty,url"`
	Role        string `json:"role" validate:"required,oneof=recruiter applicant"`
	CompanyName string `json:"company_name"`
}

// UpsertMe registers or refreshes the signed-in actor's directory entry.
func (h *ActorHandler) UpsertMe(c echo.Context) error {
	var req upsertActorRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	actorID := c.Get("uid").(string)

	// Fill display fields from the auth provider's profile when the client
	// does not supply them.
	if req.DisplayName == "" || req.AvatarURL == "" {
		displayName, photoURL, err := h.authClient.GetProfile(c.Request().Context(), actorID)
		if err == nil {
			if req.DisplayName == "" {
				req.DisplayName = displayName
			}
			if req.AvatarURL == "" {
				req.AvatarURL = photoURL
			}
		}
	}
	if req.DisplayName == "" {
		return response.Error(c, errors.BadRequest("A display name is required", nil))
	}

	actor := &entity.Actor{
		ID:          actorID,
		Email:       req.Email,
		DisplayName: req.DisplayName,
		AvatarURL:   req.AvatarURL,
		Role:        req.Role,
		CompanyName: req.CompanyName,
	}

	if err := h.actorRepo.Upsert(c.Request().Context(), actor); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, actor)
}

// GetActor returns a directory entry, for rendering a chat counterpart.
func (h *ActorHandler) GetActor(c echo.Context) error {
	id := c.Param("id")
	if id == "" {
		return response.Error(c, errors.BadRequest("Actor id is required", nil))
	}

	actor, err := h.actorRepo.GetByID(c.Request().Context(), id)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, actor)
}
