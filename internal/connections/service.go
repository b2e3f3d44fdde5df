package connections

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"clevertap-sync/internal/clevertap"
)

var (
	ErrNotFound       = errors.New("connections: not found")
	ErrInvalidRequest = errors.New("connections: invalid request")
	ErrAlreadyDeleted = errors.New("connections: already deleted")
)

// Repository stores connections. ListAll includes soft-deleted rows.
type Repository interface {
	Insert(ctx context.Context, c Connection) error
	ListAll(ctx context.Context) ([]Connection, error)
	Get(ctx context.Context, id string) (Connection, error)
	Update(ctx context.Context, c Connection) error
}

type Service struct {
	repo    Repository
	regions *clevertap.RegionTable
	clock   func() time.Time
}

func NewService(repo Repository, regions *clevertap.RegionTable) *Service {
	if regions == nil {
		regions = clevertap.Default()
	}
	return &Service{repo: repo, regions: regions, clock: time.Now}
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (Connection, error) {
	req.Label = strings.TrimSpace(req.Label)
	req.AccountID = strings.TrimSpace(req.AccountID)
	req.Region = strings.ToUpper(strings.TrimSpace(req.Region))
	if req.Label == "" || req.AccountID == "" || req.Passcode == "" {
		return Connection{}, ErrInvalidRequest
	}
	if strings.HasPrefix(req.Label, DeletedLabelPrefix) {
		return Connection{}, fmt.Errorf("%w: label may not start with %q", ErrInvalidRequest, DeletedLabelPrefix)
	}
	url, err := s.regions.Resolve(req.Region)
	if err != nil {
		return Connection{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return Connection{}, err
	}
	taken := make(map[string]bool, len(all))
	for _, c := range all {
		taken[strings.ToLower(c.Name)] = true
	}

	c := Connection{
		ID:        uuid.NewString(),
		Name:      UniqueName(SafeName(req.Label), func(n string) bool { return taken[strings.ToLower(n)] }),
		Label:     req.Label,
		AccountID: req.AccountID,
		Passcode:  req.Passcode,
		Region:    req.Region,
		URL:       url,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.repo.Insert(ctx, c); err != nil {
		return Connection{}, err
	}
	return c, nil
}

// List returns live connections, oldest first.
func (s *Service) List(ctx context.Context) ([]Connection, error) {
	all, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Connection, 0, len(all))
	for _, c := range all {
		if c.Live() {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Service) Get(ctx context.Context, id string) (Connection, error) {
	if id == "" {
		return Connection{}, ErrInvalidRequest
	}
	return s.repo.Get(ctx, id)
}

// SoftDelete tombstones the connection. The row and its name remain.
func (s *Service) SoftDelete(ctx context.Context, id string) (Connection, error) {
	c, err := s.Get(ctx, id)
	if err != nil {
		return Connection{}, err
	}
	if !c.Live() {
		return Connection{}, ErrAlreadyDeleted
	}
	c = c.tombstone()
	if err := s.repo.Update(ctx, c); err != nil {
		return Connection{}, err
	}
	return c, nil
}

// Active picks the connection the engine dispatches through: the live one
// named name, or the earliest live connection when name is empty. The URL is
// re-resolved from the region table so a stale stored URL cannot be used.
func (s *Service) Active(ctx context.Context, name string) (Connection, error) {
	live, err := s.List(ctx)
	if err != nil {
		return Connection{}, err
	}
	var (
		c     Connection
		found bool
	)
	for _, l := range live {
		if name == "" || strings.EqualFold(l.Name, name) {
			c, found = l, true
			break
		}
	}
	if !found {
		if name != "" {
			return Connection{}, &clevertap.ConfigError{Reason: fmt.Sprintf("connection %q not found", name)}
		}
		return Connection{}, &clevertap.ConfigError{Reason: "no connection configured"}
	}
	if !c.Credentials().Valid() {
		return Connection{}, &clevertap.ConfigError{Reason: fmt.Sprintf("connection %s has no credentials", c.Name)}
	}
	url, err := s.regions.Resolve(c.Region)
	if err != nil {
		return Connection{}, err
	}
	c.URL = url
	return c, nil
}
