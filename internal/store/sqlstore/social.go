package sqlstore

import (
	"context"

	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store"
)

func (s *SQLStore) BlockUser(ctx context.Context, blockerID, blockedID string) error {
	query := s.rebind("INSERT INTO blocked_users (blocker_id, blocked_id, created_at) VALUES (?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, blockerID, blockedID, now())
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *SQLStore) UnblockUser(ctx context.Context, blockerID, blockedID string) error {
	query := s.rebind("DELETE FROM blocked_users WHERE blocker_id = ? AND blocked_id = ?")
	_, err := s.db.ExecContext(ctx, query, blockerID, blockedID)
	return err
}

func (s *SQLStore) IsUserBlocked(ctx context.Context, blockerID, blockedID string) (bool, error) {
	var exists bool
	query := s.rebind("SELECT EXISTS(SELECT 1 FROM blocked_users WHERE blocker_id = ? AND blocked_id = ?)")
	err := s.db.QueryRowContext(ctx, query, blockerID, blockedID).Scan(&exists)
	return exists, err
}

func (s *SQLStore) CreateNFT(ctx context.Context, nft *models.NFT) error {
	if nft.ID == "" {
		nft.ID = newID()
	}
	query := s.rebind("INSERT INTO nfts (id, owner_id, contract_address, token_id, name, chain) VALUES (?, ?, ?, ?, ?, ?)")
	_, err := s.db.ExecContext(ctx, query, nft.ID, nft.OwnerID, nft.ContractAddress, nft.TokenID, nft.Name, nft.Chain)
	return err
}

func (s *SQLStore) GetNFT(ctx context.Context, nftID string) (*models.NFT, error) {
	var nft models.NFT
	query := s.rebind("SELECT id, owner_id, contract_address, token_id, name, chain FROM nfts WHERE id = ?")
	err := s.db.QueryRowContext(ctx, query, nftID).Scan(&nft.ID, &nft.OwnerID, &nft.ContractAddress, &nft.TokenID, &nft.Name, &nft.Chain)
	if err != nil {
		return nil, notFound(err)
	}
	return &nft, nil
}

func (s *SQLStore) SendFriendRequest(ctx context.Context, requesterID, addresseeID string) (*models.Friendship, error) {
	f := &models.Friendship{
		ID:          newID(),
		RequesterID: requesterID,
		AddresseeID: addresseeID,
		Status:      models.FriendshipPending,
		CreatedAt:   now(),
	}
	query := s.rebind("INSERT INTO friendships (id, requester_id, addressee_id, status, created_at) VALUES (?, ?, ?, ?, ?)")
	if _, err := s.db.ExecContext(ctx, query, f.ID, f.RequesterID, f.AddresseeID, f.Status, f.CreatedAt); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SQLStore) GetFriendship(ctx context.Context, friendshipID string) (*models.Friendship, error) {
	var f models.Friendship
	query := s.rebind("SELECT id, requester_id, addressee_id, status, created_at FROM friendships WHERE id = ?")
	err := s.db.QueryRowContext(ctx, query, friendshipID).Scan(&f.ID, &f.RequesterID, &f.AddresseeID, &f.Status, &f.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &f, nil
}

// CheckFriendship reports whether a pending or accepted friendship exists
// between the two users in either direction.
func (s *SQLStore) CheckFriendship(ctx context.Context, userA, userB string) (bool, error) {
	var exists bool
	query := s.rebind(`SELECT EXISTS(SELECT 1 FROM friendships
		WHERE ((requester_id = ? AND addressee_id = ?) OR (requester_id = ? AND addressee_id = ?))
		AND status <> ?)`)
	err := s.db.QueryRowContext(ctx, query, userA, userB, userB, userA, models.FriendshipRejected).Scan(&exists)
	return exists, err
}

func (s *SQLStore) SetFriendshipStatus(ctx context.Context, friendshipID, status string) error {
	res, err := s.db.ExecContext(ctx, s.rebind("UPDATE friendships SET status = ? WHERE id = ?"), status, friendshipID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}
