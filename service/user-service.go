package service

import (
	"context"
	"errors"
	"fmt"

	"user-service/models"
	"user-service/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

const instrumentationName = "user-service/service"

var (
	generateFromPassword   = bcrypt.GenerateFromPassword
	compareHashAndPassword = bcrypt.CompareHashAndPassword
)

type UserService struct {
	repo         repository.UserRepository
	bcryptCost   int
	tracer       trace.Tracer
	usersCreated metric.Int64Counter
}

func NewUserService(repo repository.UserRepository, bcryptCost int) *UserService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"users.created",
		metric.WithDescription("Number of users created"),
	)
	if err != nil {
		otel.Handle(err)
	}
	return &UserService{
		repo:         repo,
		bcryptCost:   bcryptCost,
		tracer:       otel.Tracer(instrumentationName),
		usersCreated: counter,
	}
}

func (s *UserService) start(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "UserService."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Create registers a user after checking that username and email are free.
// The database constraints still reject a concurrent duplicate.
func (s *UserService) Create(ctx context.Context, dto models.UserDTO) (user models.User, err error) {
	ctx, span := s.start(ctx, "Create")
	defer func() { endSpan(span, err) }()

	if dto.Username == nil || dto.Email == nil || dto.Password == nil {
		return models.User{}, errors.New("username, email and password are required")
	}

	err = s.repo.WithTx(ctx, func(repo repository.UserRepository) error {
		taken, err := repo.ExistsByUsername(ctx, *dto.Username)
		if err != nil {
			return err
		}
		if taken {
			return ErrUsernameTaken
		}

		taken, err = repo.ExistsByEmail(ctx, *dto.Email)
		if err != nil {
			return err
		}
		if taken {
			return ErrEmailTaken
		}

		hash, err := s.hash(*dto.Password)
		if err != nil {
			return err
		}

		user = models.User{
			Username:     *dto.Username,
			Email:        *dto.Email,
			PasswordHash: hash,
		}
		return saveUser(ctx, repo, &user)
	})
	if err != nil {
		return models.User{}, err
	}

	span.SetAttributes(attribute.Int64("user.id", user.ID))
	if s.usersCreated != nil {
		s.usersCreated.Add(ctx, 1)
	}
	return user, nil
}

func (s *UserService) GetByID(ctx context.Context, id int64) (user models.User, err error) {
	ctx, span := s.start(ctx, "GetByID")
	defer func() { endSpan(span, err) }()

	err = s.repo.WithTx(ctx, func(repo repository.UserRepository) error {
		user, err = findByID(ctx, repo, id)
		return err
	})
	return user, err
}

func (s *UserService) GetByUsername(ctx context.Context, username string) (user models.User, err error) {
	ctx, span := s.start(ctx, "GetByUsername")
	defer func() { endSpan(span, err) }()

	err = s.repo.WithTx(ctx, func(repo repository.UserRepository) error {
		found, err := repo.FindByUsername(ctx, username)
		if err != nil {
			return translateNotFound(err)
		}
		user = found
		return nil
	})
	return user, err
}

func (s *UserService) List(ctx context.Context) (users []models.User, err error) {
	ctx, span := s.start(ctx, "List")
	defer func() { endSpan(span, err) }()

	err = s.repo.WithTx(ctx, func(repo repository.UserRepository) error {
		users, err = repo.FindAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("users.count", len(users)))
	return users, nil
}

// Update applies the non-nil fields of dto. Changing the password re-hashes it.
func (s *UserService) Update(ctx context.Context, id int64, dto models.UserDTO) (user models.User, err error) {
	ctx, span := s.start(ctx, "Update")
	defer func() { endSpan(span, err) }()

	err = s.repo.WithTx(ctx, func(repo repository.UserRepository) error {
		current, err := findByID(ctx, repo, id)
		if err != nil {
			return err
		}

		if dto.Username != nil && *dto.Username != current.Username {
			taken, err := repo.ExistsByUsername(ctx, *dto.Username)
			if err != nil {
				return err
			}
			if taken {
				return ErrUsernameTaken
			}
			current.Username = *dto.Username
		}
		if dto.Email != nil && *dto.Email != current.Email {
			taken, err := repo.ExistsByEmail(ctx, *dto.Email)
			if err != nil {
				return err
			}
			if taken {
				return ErrEmailTaken
			}
			current.Email = *dto.Email
		}
		if dto.Password != nil {
			hash, err := s.hash(*dto.Password)
			if err != nil {
				return err
			}
			current.PasswordHash = hash
		}

		if err := saveUser(ctx, repo, &current); err != nil {
			return err
		}
		user = current
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) Delete(ctx context.Context, id int64) (err error) {
	ctx, span := s.start(ctx, "Delete")
	defer func() { endSpan(span, err) }()

	return s.repo.WithTx(ctx, func(repo repository.UserRepository) error {
		if _, err := findByID(ctx, repo, id); err != nil {
			return err
		}
		return translateNotFound(repo.Delete(ctx, id))
	})
}

// Authenticate returns the user when the password matches the stored hash.
func (s *UserService) Authenticate(ctx context.Context, username, password string) (user models.User, err error) {
	ctx, span := s.start(ctx, "Authenticate")
	defer func() { endSpan(span, err) }()

	err = s.repo.WithTx(ctx, func(repo repository.UserRepository) error {
		found, err := repo.FindByUsername(ctx, username)
		if errors.Is(err, repository.ErrUserNotFound) {
			return ErrBadLogin
		}
		if err != nil {
			return err
		}
		if err := compareHashAndPassword([]byte(found.PasswordHash), []byte(password)); err != nil {
			return ErrBadLogin
		}
		user = found
		return nil
	})
	if err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *UserService) hash(password string) (string, error) {
	hashed, err := generateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

func findByID(ctx context.Context, repo repository.UserRepository, id int64) (models.User, error) {
	user, err := repo.FindByID(ctx, id)
	if err != nil {
		return models.User{}, translateNotFound(err)
	}
	return user, nil
}

func saveUser(ctx context.Context, repo repository.UserRepository, user *models.User) error {
	err := repo.Save(ctx, user)
	var dupErr *repository.DuplicateError
	switch {
	case errors.As(err, &dupErr):
		switch dupErr.Field {
		case "username":
			return ErrUsernameTaken
		case "email":
			return ErrEmailTaken
		default:
			return ErrUserConflict
		}
	case errors.Is(err, repository.ErrDuplicate):
		return ErrUserConflict
	default:
		return translateNotFound(err)
	}
}

func translateNotFound(err error) error {
	if errors.Is(err, repository.ErrUserNotFound) {
		return ErrUserNotFound
	}
	return err
}
