package social

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"example.com/progression/internal/domain"
)

// SendFriendRequest creates a pending edge from requesterID to recipientID.
func (s *Service) SendFriendRequest(ctx context.Context, requesterID, recipientID string) (domain.Friendship, error) {
	if requesterID == recipientID {
		return domain.Friendship{}, domain.ErrInvalidFriendRequest
	}
	existing, err := s.repo.GetFriendship(ctx, requesterID, recipientID)
	if err != nil {
		return domain.Friendship{}, fmt.Errorf("get friendship: %w", err)
	}
	if existing != nil {
		switch existing.Status {
		case domain.FriendshipAccepted:
			return domain.Friendship{}, domain.ErrAlreadyFriends
		case domain.FriendshipBlocked:
			return domain.Friendship{}, domain.ErrUserBlocked
		default:
			return domain.Friendship{}, domain.ErrRequestPending
		}
	}

	now := s.now().UTC()
	f := domain.Friendship{
		ID:          uuid.NewString(),
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      domain.FriendshipPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateFriendship(ctx, f); err != nil {
		return domain.Friendship{}, err
	}
	return f, nil
}

// AcceptFriendRequest accepts a pending request addressed to userID.
func (s *Service) AcceptFriendRequest(ctx context.Context, userID, requestID string) (domain.Friendship, error) {
	f, err := s.pendingRequest(ctx, userID, requestID)
	if err != nil {
		return domain.Friendship{}, err
	}
	f.Status = domain.FriendshipAccepted
	f.UpdatedAt = s.now().UTC()
	if err := s.repo.AcceptFriendship(ctx, f); err != nil {
		return domain.Friendship{}, err
	}
	return f, nil
}

// RejectFriendRequest drops a pending request addressed to userID.
func (s *Service) RejectFriendRequest(ctx context.Context, userID, requestID string) error {
	f, err := s.pendingRequest(ctx, userID, requestID)
	if err != nil {
		return err
	}
	return s.repo.DeleteFriendship(ctx, f.ID)
}

// RemoveFriend deletes the accepted edge between userID and friendID.
func (s *Service) RemoveFriend(ctx context.Context, userID, friendID string) error {
	f, err := s.repo.GetFriendship(ctx, userID, friendID)
	if err != nil {
		return fmt.Errorf("get friendship: %w", err)
	}
	if f == nil || f.Status != domain.FriendshipAccepted {
		return domain.ErrNotFriends
	}
	return s.repo.DeleteFriendship(ctx, f.ID)
}

// Friends lists userID's accepted friendships.
func (s *Service) Friends(ctx context.Context, userID string) ([]domain.Friendship, error) {
	return s.repo.ListFriendships(ctx, userID, domain.FriendshipAccepted)
}

// PendingRequests lists pending requests addressed to userID.
func (s *Service) PendingRequests(ctx context.Context, userID string) ([]domain.Friendship, error) {
	edges, err := s.repo.ListFriendships(ctx, userID, domain.FriendshipPending)
	if err != nil {
		return nil, err
	}
	incoming := make([]domain.Friendship, 0, len(edges))
	for _, f := range edges {
		if f.RecipientID == userID {
			incoming = append(incoming, f)
		}
	}
	return incoming, nil
}

func (s *Service) pendingRequest(ctx context.Context, userID, requestID string) (domain.Friendship, error) {
	f, err := s.repo.GetFriendshipByID(ctx, requestID)
	if err != nil {
		return domain.Friendship{}, fmt.Errorf("get friendship: %w", err)
	}
	if f == nil || f.RecipientID != userID || f.Status != domain.FriendshipPending {
		return domain.Friendship{}, domain.ErrRequestNotFound
	}
	return *f, nil
}
