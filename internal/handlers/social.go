package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/pliu/offchat/internal/middleware"
	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store"
	"github.com/pliu/offchat/internal/ws"
	"github.com/rs/zerolog"
)

type SocialHandler struct {
	Store  store.Store
	Hub    *ws.Hub
	Logger zerolog.Logger
}

type FriendRequest struct {
	AddresseeID string `json:"addresseeId"`
}

type BlockRequest struct {
	BlockedID string `json:"blockedId"`
}

type RegisterNFTRequest struct {
	ContractAddress string `json:"contractAddress"`
	TokenID         string `json:"tokenId"`
	Name            string `json:"name"`
	Chain           string `json:"chain"`
}

func (h *SocialHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	requesterID := middleware.UserID(r)
	ctx := r.Context()

	var req FriendRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AddresseeID == "" || req.AddresseeID == requesterID {
		http.Error(w, "Invalid addressee", http.StatusBadRequest)
		return
	}

	requester, err := h.Store.GetUser(ctx, requesterID)
	if err != nil {
		storeError(w, h.Logger, err, "User")
		return
	}
	if _, err := h.Store.GetUser(ctx, req.AddresseeID); err != nil {
		storeError(w, h.Logger, err, "User")
		return
	}

	exists, err := h.Store.CheckFriendship(ctx, requesterID, req.AddresseeID)
	if err != nil {
		storeError(w, h.Logger, err, "Friendship")
		return
	}
	if exists {
		http.Error(w, "Friendship request already exists", http.StatusBadRequest)
		return
	}

	friendship, err := h.Store.SendFriendRequest(ctx, requesterID, req.AddresseeID)
	if err != nil {
		storeError(w, h.Logger, err, "Friendship")
		return
	}

	delivered := h.Hub.Notifier().FriendRequestReceived(friendship, requester)
	h.Logger.Debug().
		Str("friendship_id", friendship.ID).
		Int("delivered", delivered).
		Msg("friend request sent")

	writeJSON(w, http.StatusCreated, friendship)
}

func (h *SocialHandler) AcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveFriendRequest(w, r, models.FriendshipAccepted)
}

func (h *SocialHandler) RejectFriendRequest(w http.ResponseWriter, r *http.Request) {
	h.resolveFriendRequest(w, r, models.FriendshipRejected)
}

// resolveFriendRequest only lets the addressee answer a pending request and
// notifies both parties.
func (h *SocialHandler) resolveFriendRequest(w http.ResponseWriter, r *http.Request, status string) {
	friendshipID := mux.Vars(r)["id"]
	ctx := r.Context()

	friendship, err := h.Store.GetFriendship(ctx, friendshipID)
	if err != nil {
		storeError(w, h.Logger, err, "Friendship")
		return
	}
	if friendship.AddresseeID != middleware.UserID(r) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	if friendship.Status != models.FriendshipPending {
		http.Error(w, "Friend request already "+friendship.Status, http.StatusConflict)
		return
	}

	if err := h.Store.SetFriendshipStatus(ctx, friendshipID, status); err != nil {
		storeError(w, h.Logger, err, "Friendship")
		return
	}
	friendship.Status = status

	if status == models.FriendshipAccepted {
		h.Hub.Notifier().FriendRequestAccepted(friendship)
	} else {
		h.Hub.Notifier().FriendRequestRejected(friendship)
	}
	writeJSON(w, http.StatusOK, friendship)
}

func (h *SocialHandler) BlockUser(w http.ResponseWriter, r *http.Request) {
	blockerID := middleware.UserID(r)

	var req BlockRequest
	if !decode(w, r, &req) {
		return
	}
	if req.BlockedID == "" || req.BlockedID == blockerID {
		http.Error(w, "Invalid user", http.StatusBadRequest)
		return
	}

	err := h.Store.BlockUser(r.Context(), blockerID, req.BlockedID)
	if err != nil && !errors.Is(err, store.ErrConflict) {
		storeError(w, h.Logger, err, "Block")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"blockerId": blockerID, "blockedId": req.BlockedID})
}

func (h *SocialHandler) UnblockUser(w http.ResponseWriter, r *http.Request) {
	blockedID := mux.Vars(r)["blockedId"]
	if err := h.Store.UnblockUser(r.Context(), middleware.UserID(r), blockedID); err != nil {
		storeError(w, h.Logger, err, "Block")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterNFT records an NFT the caller claims to own so it can be sent in
// chat. No on-chain metadata is fetched.
func (h *SocialHandler) RegisterNFT(w http.ResponseWriter, r *http.Request) {
	var req RegisterNFTRequest
	if !decode(w, r, &req) {
		return
	}
	if !common.IsHexAddress(req.ContractAddress) || strings.TrimSpace(req.TokenID) == "" {
		http.Error(w, "Valid contractAddress and tokenId required", http.StatusBadRequest)
		return
	}
	if req.Chain == "" {
		req.Chain = "ethereum"
	}

	nft := &models.NFT{
		OwnerID:         middleware.UserID(r),
		ContractAddress: common.HexToAddress(req.ContractAddress).Hex(),
		TokenID:         strings.TrimSpace(req.TokenID),
		Name:            req.Name,
		Chain:           req.Chain,
	}
	if err := h.Store.CreateNFT(r.Context(), nft); err != nil {
		storeError(w, h.Logger, err, "NFT")
		return
	}
	writeJSON(w, http.StatusCreated, nft)
}
