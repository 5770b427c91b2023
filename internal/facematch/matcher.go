package facematch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/face-inbox/internal/constants"
	"github.com/kozaktomas/face-inbox/internal/database"
	"github.com/kozaktomas/face-inbox/internal/faceid"
)

// Matcher compares captured faces against enrolled users.
//
// The policy is first-below-threshold: users are scanned in store order and
// the first whose primary encoding lies strictly closer than the threshold
// wins, even if a later user would be closer. The scan is linear in the
// number of enrolled users.
type Matcher struct {
	users     database.UserWriter
	encoder   faceid.Encoder
	threshold float64
	now       func() time.Time
}

// NewMatcher creates a matcher. A non-positive threshold selects the default.
func NewMatcher(users database.UserWriter, encoder faceid.Encoder, threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = constants.DefaultMatchThreshold
	}
	return &Matcher{
		users:     users,
		encoder:   encoder,
		threshold: threshold,
		now:       time.Now,
	}
}

// Threshold returns the distance below which two faces are the same person.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Authenticate identifies the enrolled user in frame.
func (m *Matcher) Authenticate(ctx context.Context, frame []byte) (AuthResult, error) {
	encoding, err := faceid.First(ctx, m.encoder, frame)
	if errors.Is(err, faceid.ErrNoFace) {
		return AuthResult{Status: StatusNoFaceLogin}, nil
	}
	if err != nil {
		return AuthResult{}, fmt.Errorf("encode frame: %w", err)
	}

	user, dist, err := m.firstMatch(ctx, encoding)
	if err != nil {
		return AuthResult{}, err
	}
	if user == nil {
		return AuthResult{Status: StatusNoMatch}, nil
	}

	slog.Debug("face matched", "user_id", user.ID, "distance", dist)
	return AuthResult{Status: StatusMatched, UserID: user.ID, Distance: dist}, nil
}

// Register enrols the face in frame unless it already matches a user.
func (m *Matcher) Register(ctx context.Context, frame []byte) (RegisterResult, error) {
	encoding, err := faceid.First(ctx, m.encoder, frame)
	if errors.Is(err, faceid.ErrNoFace) {
		return RegisterResult{Status: StatusNoFaceReg}, nil
	}
	if err != nil {
		return RegisterResult{}, fmt.Errorf("encode frame: %w", err)
	}

	existing, dist, err := m.firstMatch(ctx, encoding)
	if err != nil {
		return RegisterResult{}, err
	}
	if existing != nil {
		return RegisterResult{Status: StatusDuplicate, UserID: existing.ID, Distance: dist}, nil
	}

	user, err := m.users.Create(ctx, encoding, m.now())
	if err != nil {
		return RegisterResult{}, fmt.Errorf("store user: %w", err)
	}

	slog.Info("user registered", "user_id", user.ID)
	return RegisterResult{Status: StatusRegistered, UserID: user.ID}, nil
}

// firstMatch returns the first user in store order within threshold, or nil.
func (m *Matcher) firstMatch(ctx context.Context, encoding []float32) (*database.User, float64, error) {
	users, err := m.users.ListWithEncodings(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list enrolled users: %w", err)
	}

	for i := range users {
		dist := database.EuclideanDistance(encoding, users[i].PrimaryEncoding())
		if dist < m.threshold {
			return &users[i], dist, nil
		}
	}
	return nil, 0, nil
}
