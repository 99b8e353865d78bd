package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pliu/offchat/internal/models"
	"github.com/pliu/offchat/internal/store"
	"github.com/rs/zerolog"
)

var errNotParticipant = errors.New("not a participant")

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// storeError maps store sentinels to a status code and logs the rest.
func storeError(w http.ResponseWriter, logger zerolog.Logger, err error, what string) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, what+" not found", http.StatusNotFound)
	case errors.Is(err, store.ErrConflict):
		http.Error(w, what+" already exists", http.StatusConflict)
	default:
		logger.Error().Err(err).Str("entity", what).Msg("store call failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// member returns the membership of userID in chatID, or errNotParticipant.
func member(ctx context.Context, st store.Store, chatID, userID string) (models.Participant, []models.Participant, error) {
	participants, err := st.GetChatParticipants(ctx, chatID)
	if err != nil {
		return models.Participant{}, nil, err
	}
	for _, p := range participants {
		if p.ID == userID {
			return p, participants, nil
		}
	}
	return models.Participant{}, participants, errNotParticipant
}

func find(participants []models.Participant, userID string) (models.Participant, bool) {
	for _, p := range participants {
		if p.ID == userID {
			return p, true
		}
	}
	return models.Participant{}, false
}
