package room

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"campus-hub/internal/apperr"
	"campus-hub/internal/identity"
	"campus-hub/internal/retry"
)

type Store interface {
	Create(ctx context.Context, rm *Room) (*Room, error)
	FindByID(ctx context.Context, id int64) (*Room, error)
	ExistsByName(ctx context.Context, name string) (bool, error)
	List(ctx context.Context) ([]Room, error)
	AddMember(ctx context.Context, roomID, userID int64) (bool, error)
	IsMember(ctx context.Context, roomID, userID int64) (bool, error)
	Exists(ctx context.Context, roomID int64) (bool, error)
	Members(ctx context.Context, roomID int64) ([]int64, error)
}

// Service is the Room Registry: which rooms exist and who belongs to them.
// Membership only grows.
type Service struct {
	repo  Store
	retry retry.Policy
	log   *zap.Logger
}

func NewService(repo Store, policy retry.Policy, log *zap.Logger) *Service {
	return &Service{repo: repo, retry: policy, log: log}
}

func (s *Service) List(ctx context.Context) ([]Room, error) {
	return retry.Value(ctx, s.retry, "room.list", func(ctx context.Context) ([]Room, error) {
		return s.repo.List(ctx)
	})
}

func (s *Service) Get(ctx context.Context, id int64) (*Room, error) {
	return retry.Value(ctx, s.retry, "room.get", func(ctx context.Context) (*Room, error) {
		return s.repo.FindByID(ctx, id)
	})
}

func (s *Service) Create(ctx context.Context, caller identity.Identity, req CreateRequest) (*Room, error) {
	if !caller.IsAdmin {
		return nil, apperr.Forbidden("room.create", "admin access required")
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, apperr.Validation("room.create", "name", "is required")
	}
	if req.Category == "" {
		req.Category = CategoryGeneral
	}
	if !req.Category.Valid() {
		return nil, apperr.Validation("room.create", "category", "must be one of study, event, general")
	}

	rm, err := s.repo.Create(ctx, &Room{
		Name:        req.Name,
		Description: strings.TrimSpace(req.Description),
		Category:    req.Category,
		AdminID:     caller.UserID,
	})
	if errors.Is(err, ErrDuplicateName) {
		return nil, apperr.Validation("room.create", "name", "a room with this name already exists")
	}
	if err != nil {
		return nil, err
	}
	s.log.Info("room_created", zap.Int64("room_id", rm.ID), zap.String("name", rm.Name))
	return rm, nil
}

// Join adds userID to the room's member set. Joining twice is a no-op.
func (s *Service) Join(ctx context.Context, roomID, userID int64) (added bool, err error) {
	if err := s.ensureExists(ctx, "room.join", roomID); err != nil {
		return false, err
	}
	added, err = retry.Value(ctx, s.retry, "room.join", func(ctx context.Context) (bool, error) {
		return s.repo.AddMember(ctx, roomID, userID)
	})
	if err != nil {
		return false, err
	}
	if added {
		s.log.Info("room_member_added", zap.Int64("room_id", roomID), zap.Int64("user_id", userID))
	}
	return added, nil
}

// CheckMember returns NotFound for an unknown room and false when the room
// exists but userID is not in it.
func (s *Service) CheckMember(ctx context.Context, roomID, userID int64) (bool, error) {
	ok, err := retry.Value(ctx, s.retry, "room.is_member", func(ctx context.Context) (bool, error) {
		return s.repo.IsMember(ctx, roomID, userID)
	})
	if err != nil || ok {
		return ok, err
	}
	return false, s.ensureExists(ctx, "room.is_member", roomID)
}

func (s *Service) Members(ctx context.Context, roomID int64) ([]int64, error) {
	if err := s.ensureExists(ctx, "room.members", roomID); err != nil {
		return nil, err
	}
	return retry.Value(ctx, s.retry, "room.members", func(ctx context.Context) ([]int64, error) {
		return s.repo.Members(ctx, roomID)
	})
}

func (s *Service) ensureExists(ctx context.Context, op string, roomID int64) error {
	ok, err := retry.Value(ctx, s.retry, op, func(ctx context.Context) (bool, error) {
		return s.repo.Exists(ctx, roomID)
	})
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound(op, "room", roomID)
	}
	return nil
}

// EnsureDefaults creates the built-in campus rooms that do not exist yet.
func (s *Service) EnsureDefaults(ctx context.Context, adminID int64) error {
	for _, def := range defaultRooms {
		exists, err := s.repo.ExistsByName(ctx, def.Name)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		rm, err := s.repo.Create(ctx, &Room{
			Name:        def.Name,
			Description: def.Description,
			Category:    def.Category,
			AdminID:     adminID,
		})
		if err != nil && !errors.Is(err, ErrDuplicateName) {
			return err
		}
		if err == nil {
			s.log.Info("default_room_created", zap.Int64("room_id", rm.ID), zap.String("name", rm.Name))
		}
	}
	return nil
}
